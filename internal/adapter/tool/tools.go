package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/browser/htmlclean"
	"smart-browser-agent/internal/usecase/resolver"
)

type Config struct {
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ScreenshotDir     string
	ContentLimit      int
	WaitPollInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       2 * time.Second,
		ScreenshotDir:     "screenshots",
		ContentLimit:      500,
		WaitPollInterval:  100 * time.Millisecond,
	}
}

type ElementResolver interface {
	Resolve(ctx context.Context, description string, page output.Page, hint entity.RoleHint) (*resolver.Candidate, error)
}

// NotFoundError carries the text the model sees when a description could
// not be resolved to an element.
type NotFoundError struct {
	Message string
	Err     error
}

func (e *NotFoundError) Error() string { return e.Message }
func (e *NotFoundError) Unwrap() error { return e.Err }

// NewHandlers builds the handler set for every session-bound action. close is
// not here: it is a session lifecycle operation.
func NewHandlers(cfg Config, res ElementResolver, logger output.LoggerPort) []output.ActionHandler {
	return []output.ActionHandler{
		&NavigateTool{cfg: cfg, logger: logger},
		&ScreenshotTool{cfg: cfg, logger: logger, now: time.Now},
		&ClickTool{resolver: res},
		&FillTool{resolver: res},
		&ListElementsTool{logger: logger},
		&GetContentTool{limit: cfg.ContentLimit},
		&WaitForElementTool{poll: cfg.WaitPollInterval},
	}
}

type NavigateTool struct {
	cfg    Config
	logger output.LoggerPort
}

func (t *NavigateTool) Name() entity.ActionName { return entity.ActionNavigate }

func (t *NavigateTool) Execute(ctx context.Context, s output.Session, args entity.Arguments) (string, error) {
	url := strings.TrimSpace(args.String("url"))
	page := s.Page()

	if err := page.Navigate(ctx, url, t.cfg.NavigationTimeout); err != nil {
		return "", err
	}
	if err := sleep(ctx, t.cfg.SettleDelay); err != nil {
		return "", err
	}

	title, err := page.Title(ctx)
	if err != nil {
		t.logger.Warn("Failed to read page title", "url", url, "error", err)
	}
	current, err := page.URL(ctx)
	if err != nil || current == "" {
		current = url
	}
	s.SetLastURL(current)

	return fmt.Sprintf("Successfully navigated to %s. Page title: %s", url, title), nil
}

type ScreenshotTool struct {
	cfg    Config
	logger output.LoggerPort
	now    func() time.Time
}

func (t *ScreenshotTool) Name() entity.ActionName { return entity.ActionScreenshot }

func (t *ScreenshotTool) Execute(ctx context.Context, s output.Session, args entity.Arguments) (string, error) {
	if err := os.MkdirAll(t.cfg.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := screenshotPath(t.cfg.ScreenshotDir, s.ID(), t.now())

	if err := s.Page().Screenshot(ctx, path, args.Bool("full_page")); err != nil {
		return "", err
	}
	t.logger.Debug("Screenshot saved", "path", path, "session_id", s.ID())
	return fmt.Sprintf("Screenshot saved to %s", path), nil
}

// screenshotPath picks screenshot_<session>_<YYYYMMDD_HHMMSS>.png, adding a
// numeric suffix when that file already exists.
func screenshotPath(dir, sessionID string, at time.Time) string {
	base := fmt.Sprintf("screenshot_%s_%s", sanitize(sessionID), at.Format("20060102_150405"))
	path := filepath.Join(dir, base+".png")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.png", base, i))
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sanitize(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	s = string(result)
	if s == "" {
		return "session"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

type ClickTool struct {
	resolver ElementResolver
}

func (t *ClickTool) Name() entity.ActionName { return entity.ActionClick }

func (t *ClickTool) Execute(ctx context.Context, s output.Session, args entity.Arguments) (string, error) {
	desc := args.String("description")
	c, err := t.resolver.Resolve(ctx, desc, s.Page(), entity.RoleClickable)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return "", &NotFoundError{Message: "Could not find clickable element: " + desc, Err: err}
		}
		return "", err
	}
	if err := c.Element.Click(ctx); err != nil {
		return "", fmt.Errorf("click %q (selector %s): %w", desc, c.Query, err)
	}
	return fmt.Sprintf("Successfully clicked: %s (using selector: %s)", desc, c.Query), nil
}

type FillTool struct {
	resolver ElementResolver
}

func (t *FillTool) Name() entity.ActionName { return entity.ActionFill }

func (t *FillTool) Execute(ctx context.Context, s output.Session, args entity.Arguments) (string, error) {
	desc := args.String("description")
	c, err := t.resolver.Resolve(ctx, desc, s.Page(), entity.RoleInput)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return "", &NotFoundError{Message: "Could not find input field: " + desc, Err: err}
		}
		return "", err
	}
	if err := c.Element.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear %q (selector %s): %w", desc, c.Query, err)
	}
	if err := c.Element.Input(ctx, args.String("text")); err != nil {
		return "", fmt.Errorf("type into %q (selector %s): %w", desc, c.Query, err)
	}
	return fmt.Sprintf("Successfully filled %s with text (using selector: %s)", desc, c.Query), nil
}

type GetContentTool struct {
	limit int
}

func (t *GetContentTool) Name() entity.ActionName { return entity.ActionGetContent }

func (t *GetContentTool) Execute(ctx context.Context, s output.Session, args entity.Arguments) (string, error) {
	page := s.Page()

	var text string
	if sel := args.String("selector"); sel != "" {
		els, err := page.QueryAll(ctx, sel)
		if err != nil {
			return "", err
		}
		if len(els) == 0 {
			return "", &NotFoundError{Message: "No element matches selector: " + sel, Err: resolver.ErrNotFound}
		}
		if text, err = els[0].Text(ctx); err != nil {
			return "", err
		}
	} else {
		raw, err := page.HTML(ctx)
		if err != nil {
			return "", err
		}
		text = htmlclean.Text(raw)
	}

	return "Page content: " + truncate(text, t.limit), nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

type WaitForElementTool struct {
	poll time.Duration
}

func (t *WaitForElementTool) Name() entity.ActionName { return entity.ActionWaitForElement }

func (t *WaitForElementTool) Execute(ctx context.Context, s output.Session, args entity.Arguments) (string, error) {
	sel := args.String("selector")
	timeout := time.Duration(args.Int("timeout_ms", 5000)) * time.Millisecond
	poll := t.poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	for {
		els, err := s.Page().QueryAll(ctx, sel)
		if err != nil {
			return "", err
		}
		for _, el := range els {
			if ok, err := el.Visible(ctx); err == nil && ok {
				return "Element found: " + sel, nil
			}
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("timed out after %s waiting for element: %s", timeout, sel)
		}
		if err := sleep(ctx, poll); err != nil {
			return "", err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
