package static

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// writePlaceholder renders a flat image tinted from the document hash so two
// different pages produce visibly different files.
func writePlaceholder(path, document string, fullPage bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(document))
	sum := h.Sum32()
	tint := color.NRGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}

	height := 200
	if fullPage {
		height = 400
	}
	img := imaging.New(320, height, tint)
	var canvas image.Image = imaging.Resize(img, 160, 0, imaging.Box)

	if err := imaging.Save(canvas, path); err != nil {
		return fmt.Errorf("save screenshot: %w", err)
	}
	return nil
}
