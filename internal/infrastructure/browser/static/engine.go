// Package static is an in-memory browser engine backed by goquery. It serves
// pages registered up front (or fetched over plain HTTP), evaluates CSS
// queries with cascadia and approximates visibility from markup alone.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"smart-browser-agent/internal/application/port/output"
)

var ErrContextClosed = errors.New("static: browser context closed")

type Engine struct {
	mu       sync.RWMutex
	pages    map[string]string
	client   *http.Client
	launches atomic.Int64
}

type Option func(*Engine)

// WithHTTPClient enables fetching unregistered http(s) URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

func WithPage(rawURL, html string) Option {
	return func(e *Engine) { e.pages[rawURL] = html }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{pages: make(map[string]string)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return "static"
}

func (e *Engine) Register(rawURL, html string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages[rawURL] = html
}

// Launches reports how many browser contexts were created.
func (e *Engine) Launches() int {
	return int(e.launches.Load())
}

func (e *Engine) Launch(ctx context.Context, opts output.LaunchOptions) (output.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.launches.Add(1)
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return &browserContext{
		page: &Page{engine: e, doc: doc, url: "about:blank", userAgent: opts.UserAgent},
	}, nil
}

func (e *Engine) load(ctx context.Context, rawURL, userAgent string) (string, error) {
	e.mu.RLock()
	html, ok := e.pages[rawURL]
	e.mu.RUnlock()
	if ok {
		return html, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if e.client == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

type browserContext struct {
	page   *Page
	closed atomic.Bool
}

func (b *browserContext) Page() output.Page {
	return b.page
}

func (b *browserContext) Close() error {
	if b.closed.Swap(true) {
		return ErrContextClosed
	}
	b.page.close()
	return nil
}

type Page struct {
	engine    *Engine
	userAgent string

	mu     sync.Mutex
	doc    *goquery.Document
	url    string
	closed bool
}

var _ output.Page = (*Page)(nil)

func (p *Page) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *Page) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrContextClosed
	}
	p.mu.Unlock()

	html, err := p.engine.load(ctx, rawURL, p.userAgent)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.url = rawURL
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]output.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrContextClosed
	}

	var out []output.Element
	p.doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, sel: s})
	})
	return out, nil
}

func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	p.mu.Lock()
	html, _ := goquery.OuterHtml(p.doc.Selection)
	p.mu.Unlock()
	return writePlaceholder(path, html, fullPage)
}

// followLink resolves href against the current URL and navigates when the
// target is a registered page.
func (p *Page) followLink(ctx context.Context, href string) error {
	base, err := url.Parse(p.currentURL())
	if err != nil {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	target := base.ResolveReference(ref).String()

	p.engine.mu.RLock()
	_, registered := p.engine.pages[target]
	p.engine.mu.RUnlock()
	if !registered {
		return nil
	}
	return p.Navigate(ctx, target, 0)
}

func (p *Page) currentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}
