// Package playwright drives Chromium through playwright-go. It is the
// alternative to the rod engine for hosts where the Playwright driver is
// already installed.
package playwright

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"

	"smart-browser-agent/internal/application/port/output"
)

var _ output.BrowserEngine = (*Engine)(nil)

const defaultTimeout = 10 * time.Second

type Config struct {
	// Install downloads the driver and Chromium before the first launch.
	Install bool
	Timeout time.Duration
}

type Engine struct {
	cfg    Config
	logger output.LoggerPort

	mu sync.Mutex
	pw *playwright.Playwright
}

func NewEngine(cfg Config, logger output.LoggerPort) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) Name() string {
	return "playwright"
}

func (e *Engine) driver() (*playwright.Playwright, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pw != nil {
		return e.pw, nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if e.cfg.Install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	e.pw = pw
	return pw, nil
}

func (e *Engine) Launch(ctx context.Context, opts output.LaunchOptions) (output.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := e.driver()
	if err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.Launch(launchOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		contextOpts.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(e.cfg.Timeout.Milliseconds()))

	if e.logger != nil {
		e.logger.Debug("Playwright browser launched", "headless", opts.Headless)
	}
	return &Context{browser: browser, context: bctx, page: &Page{page: page}}, nil
}

func launchOptions(opts output.LaunchOptions) playwright.BrowserTypeLaunchOptions {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	if opts.NoSandbox {
		launchOpts.ChromiumSandbox = playwright.Bool(false)
	}
	if len(opts.Args) > 0 {
		launchOpts.Args = append([]string(nil), opts.Args...)
	}
	return launchOpts
}

// Close stops the Playwright driver. Browser contexts must be closed first.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pw == nil {
		return nil
	}
	err := e.pw.Stop()
	e.pw = nil
	return err
}

type Context struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    *Page

	once sync.Once
	err  error
}

func (c *Context) Page() output.Page {
	return c.page
}

func (c *Context) Close() error {
	c.once.Do(func() {
		c.err = multierr.Append(c.context.Close(), c.browser.Close())
	})
	return c.err
}

type Page struct {
	page playwright.Page
}

var _ output.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]output.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]output.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &Element{h: h})
	}
	return out, nil
}

func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

type Element struct {
	h playwright.ElementHandle
}

var _ output.Element = (*Element)(nil)

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.h.IsVisible()
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.h.Click()
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.h.Fill("")
}

func (e *Element) Input(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.h.Type(text)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.h.InnerText()
}

const (
	attributeJS = `(el, name) => el.getAttribute(name)`
	valueJS     = `(el) => (el.value === undefined ? el.getAttribute('value') : el.value)`
)

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var (
		v   interface{}
		err error
	)
	if name == "value" {
		v, err = e.h.Evaluate(valueJS)
	} else {
		v, err = e.h.Evaluate(attributeJS, name)
	}
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	if !ok {
		return "", false, nil
	}
	return s, true, nil
}
