package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"smart-browser-agent/internal/application/port/output"
)

var _ output.BrowserEngine = (*Engine)(nil)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxWidth = 1920
	jpegQuality     = 90
)

type BrowserConfig struct {
	// Bin overrides the browser binary; empty lets the launcher find or download one.
	Bin                     string
	Timeout                 time.Duration
	MaxScreenshotWidth      int
	DevTools                bool
	DisableSecurityFeatures bool
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Timeout:            defaultTimeout,
		MaxScreenshotWidth: defaultMaxWidth,
	}
}

// Engine launches one Chrome process per browser context so sessions are
// torn down independently.
type Engine struct {
	cfg    BrowserConfig
	logger output.LoggerPort
}

func NewEngine(cfg BrowserConfig, logger output.LoggerPort) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) Name() string {
	return "rod"
}

// newLauncher is not bound to ctx: the browser outlives the call that started it.
func (e *Engine) newLauncher(opts output.LaunchOptions) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		Devtools(e.cfg.DevTools).
		NoSandbox(opts.NoSandbox).
		Delete("use-mock-keychain")
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	if e.cfg.DisableSecurityFeatures {
		l = l.Set("disable-web-security").Set("allow-running-insecure-content")
	}
	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func (e *Engine) Launch(ctx context.Context, opts output.LaunchOptions) (output.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := e.newLauncher(opts)
	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := &Browser{launcher: l, timeout: e.cfg.Timeout, maxWidth: e.cfg.MaxScreenshotWidth}
	b.browser = rod.New().ControlURL(url).SlowMotion(opts.SlowMo)
	if err := b.browser.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Viewport.Width,
			Height:            opts.Viewport.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	b.page = &Page{page: page, timeout: b.timeout, maxWidth: b.maxWidth}

	if e.logger != nil {
		e.logger.Debug("Chrome launched", "controlURL", url, "headless", opts.Headless)
	}
	return b, nil
}

// Browser оборачивает *rod.Browser и корректно закрывает процесс
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // важно! чтобы корректно убить процесс Chrome
	page     *Page
	timeout  time.Duration
	maxWidth int

	closeOnce sync.Once
	closeErr  error
}

func (b *Browser) Page() output.Page {
	return b.page
}

func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if b.browser != nil {
			b.closeErr = b.browser.Close()
		}
		b.kill()
	})
	return b.closeErr
}

func (b *Browser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

type Page struct {
	page     *rod.Page
	timeout  time.Duration
	maxWidth int
}

var _ output.Page = (*Page)(nil)

func (p *Page) with(ctx context.Context, timeout time.Duration) (*rod.Page, context.CancelFunc) {
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return p.page.Context(ctx), cancel
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page, cancel := p.with(ctx, timeout)
	defer cancel()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for load: %w", err)
	}
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	page, cancel := p.with(ctx, 0)
	defer cancel()
	info, err := page.Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	page, cancel := p.with(ctx, 0)
	defer cancel()
	info, err := page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	page, cancel := p.with(ctx, 0)
	defer cancel()
	return page.HTML()
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]output.Element, error) {
	page, cancel := p.with(ctx, 0)
	defer cancel()

	els, err := page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]output.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el, timeout: p.timeout})
	}
	return out, nil
}

func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	page, cancel := p.with(ctx, 0)
	defer cancel()

	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if isJPEG(path) {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		req.Quality = gson.Int(jpegQuality)
	}
	imgBytes, err := page.Screenshot(fullPage, req)
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return fmt.Errorf("image decode failed: %w", err)
	}
	if p.maxWidth > 0 && img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return imaging.Save(img, path)
}

func isJPEG(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

type Element struct {
	el      *rod.Element
	timeout time.Duration
}

var _ output.Element = (*Element)(nil)

func (e *Element) with(ctx context.Context) (*rod.Element, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	return e.el.Context(ctx), cancel
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Visible()
}

func (e *Element) Click(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

const clearJS = `() => {
	if (this.isContentEditable) {
		this.textContent = '';
	} else {
		this.value = '';
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

func (e *Element) Clear(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	if _, err := el.Eval(clearJS); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	return nil
}

func (e *Element) Input(ctx context.Context, text string) error {
	el, cancel := e.with(ctx)
	defer cancel()
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Text()
}

// Attribute reads the live "value" property rather than the markup
// attribute so typed text is visible.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	el, cancel := e.with(ctx)
	defer cancel()

	if name == "value" {
		prop, err := el.Property("value")
		if err != nil {
			return "", false, err
		}
		if prop.Nil() {
			return "", false, nil
		}
		return prop.Str(), true, nil
	}

	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}
