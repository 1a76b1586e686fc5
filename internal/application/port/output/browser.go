package output

import (
	"context"
	"time"

	"smart-browser-agent/internal/domain/entity"
)

// BrowserEngine launches independent browser contexts. Each context owns its
// own engine resources and is torn down without affecting the others.
type BrowserEngine interface {
	Name() string
	Launch(ctx context.Context, opts LaunchOptions) (BrowserContext, error)
}

type LaunchOptions struct {
	Headless  bool
	Viewport  entity.Viewport
	UserAgent string
	NoSandbox bool
	SlowMo    time.Duration
	// Args are extra Chromium command-line switches, e.g. "--start-maximized".
	Args []string
}

type BrowserContext interface {
	Page() Page
	Close() error
}

type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// QueryAll returns matches in document order. A malformed selector is an
	// error, an empty result is not.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	Screenshot(ctx context.Context, path string, fullPage bool) error
}

type Element interface {
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	Input(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)

	// Attribute reports ok=false when the attribute is absent.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
}
