package di

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/multierr"

	"smart-browser-agent/internal/adapter/tool"
	"smart-browser-agent/internal/application/port/input"
	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/application/service"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/browser/playwright"
	"smart-browser-agent/internal/infrastructure/browser/rod"
	"smart-browser-agent/internal/infrastructure/browser/static"
	"smart-browser-agent/internal/infrastructure/config"
	"smart-browser-agent/internal/infrastructure/llm/langchain"
	"smart-browser-agent/internal/infrastructure/llm/openrouter"
	"smart-browser-agent/internal/infrastructure/logger"
	"smart-browser-agent/internal/infrastructure/metrics"
	"smart-browser-agent/internal/infrastructure/prompts"
	"smart-browser-agent/internal/usecase/actions"
	"smart-browser-agent/internal/usecase/executor"
	"smart-browser-agent/internal/usecase/resolver"
	"smart-browser-agent/internal/usecase/session"
)

type Container struct {
	Config       *config.Config
	Logger       output.LoggerPort
	Engine       output.BrowserEngine
	LLM          output.LLMPort
	Registry     *service.ActionRegistry
	Sessions     *session.Manager
	Actions      output.ActionExecutor
	Metrics      *metrics.Collector
	TaskExecutor input.TaskExecutor

	closers    []io.Closer
	ownsLogger bool
}

type Option func(*options)

type options struct {
	logger   output.LoggerPort
	engine   output.BrowserEngine
	llm      output.LLMPort
	progress output.ProgressPort
}

// WithLogger replaces the logger built from cfg.Logger.
func WithLogger(l output.LoggerPort) Option {
	return func(o *options) { o.logger = l }
}

// WithEngine replaces the engine selected by browser.engine.
func WithEngine(e output.BrowserEngine) Option {
	return func(o *options) { o.engine = e }
}

// WithLLM replaces the adapter selected by llm.provider.
func WithLLM(l output.LLMPort) Option {
	return func(o *options) { o.llm = l }
}

func WithProgress(p output.ProgressPort) Option {
	return func(o *options) { o.progress = p }
}

func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{Config: cfg}

	log := o.logger
	if log == nil {
		la, err := logger.NewLoggerAdapter(cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		log = la
		c.ownsLogger = true
	}
	c.Logger = log

	c.Metrics = metrics.NewCollector()

	engine := o.engine
	if engine == nil {
		var err error
		engine, err = c.newEngine(cfg.Browser)
		if err != nil {
			return nil, err
		}
	}
	c.Engine = engine

	llm := o.llm
	if llm == nil {
		var err error
		llm, err = newLLM(cfg.LLM, log)
		if err != nil {
			return nil, err
		}
	}
	c.LLM = llm

	c.Registry = service.DefaultActionRegistry()
	c.Sessions = session.NewManager(engine, output.LaunchOptions{
		Headless:  cfg.Browser.Headless,
		Viewport:  entity.Viewport{Width: cfg.Browser.Viewport.Width, Height: cfg.Browser.Viewport.Height},
		UserAgent: cfg.Browser.UserAgent,
		NoSandbox: cfg.Browser.NoSandbox,
		SlowMo:    cfg.Browser.SlowMotion,
		Args:      cfg.Browser.Args,
	}, log, c.Metrics)

	handlers := tool.NewHandlers(tool.Config{
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		SettleDelay:       cfg.Browser.SettleDelay,
		ScreenshotDir:     cfg.Browser.ScreenshotDir,
		ContentLimit:      tool.DefaultConfig().ContentLimit,
		WaitPollInterval:  tool.DefaultConfig().WaitPollInterval,
	}, resolver.New(log), log)

	exec, err := actions.NewExecutor(c.Registry, c.Sessions, handlers, log,
		actions.WithMetrics(c.Metrics),
		actions.WithMaxObservationLen(cfg.Agent.MaxObservationLen),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build action executor: %w", err)
	}
	c.Actions = exec

	prompt, err := newPromptFunc(c.Registry)
	if err != nil {
		return nil, err
	}

	progress := o.progress
	if progress == nil {
		progress = output.NopProgress{}
	}
	c.TaskExecutor = executor.New(llm, exec, c.Sessions, c.Registry, prompt, log, executor.Config{
		MaxTurns:    cfg.Agent.MaxTurns,
		MaxDuration: cfg.Agent.MaxDuration,
		Temperature: cfg.LLM.Temperature,
	}, executor.WithProgress(progress), executor.WithMetrics(c.Metrics))

	return c, nil
}

func (c *Container) newEngine(cfg config.BrowserConfig) (output.BrowserEngine, error) {
	switch cfg.Engine {
	case config.EngineRod, "":
		return rod.NewEngine(rod.BrowserConfig{
			Bin:                cfg.Bin,
			Timeout:            cfg.ActionTimeout,
			MaxScreenshotWidth: cfg.ScreenshotMaxWidth,
		}, c.Logger), nil
	case config.EnginePlaywright:
		e := playwright.NewEngine(playwrightConfig(cfg), c.Logger)
		c.closers = append(c.closers, e)
		return e, nil
	case config.EngineStatic:
		return static.NewEngine(), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}

func playwrightConfig(cfg config.BrowserConfig) playwright.Config {
	return playwright.Config{
		Install: cfg.Install,
		Timeout: cfg.ActionTimeout,
	}
}

func newLLM(cfg config.LLMConfig, log output.LoggerPort) (output.LLMPort, error) {
	baseURL := cfg.ResolvedBaseURL(openrouter.DefaultBaseURL)
	switch cfg.Provider {
	case config.ProviderOpenRouter, config.ProviderOpenAI:
		return openrouter.NewOpenRouterAdapter(openrouter.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: baseURL,
			Stream:  cfg.Stream,
			Logger:  log,
		}), nil
	case config.ProviderLangchain:
		a, err := langchain.NewOpenAI(cfg.APIKey, cfg.Model, baseURL, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newPromptFunc(registry *service.ActionRegistry) (executor.PromptFunc, error) {
	sp, err := prompts.NewSystemPrompt(prompts.DefaultSystemPrompt)
	if err != nil {
		return nil, err
	}
	actionList := registry.Describe()
	return func(snap output.SessionSnapshot) (string, error) {
		return sp.Render(prompts.SystemPromptData{
			Actions:          actionList,
			SessionID:        snap.ID,
			CurrentURL:       snap.LastURL,
			CompletedActions: snap.CompletedActions,
		})
	}, nil
}

func (c *Container) MetricsHandler() http.Handler {
	return c.Metrics.Handler()
}

// Close releases every browser session, then engine and logger resources.
func (c *Container) Close(ctx context.Context) error {
	var errs error
	if c.Sessions != nil {
		errs = multierr.Append(errs, c.Sessions.Shutdown(ctx))
	}
	for _, cl := range c.closers {
		errs = multierr.Append(errs, cl.Close())
	}
	if c.ownsLogger {
		_ = c.Logger.Close()
	}
	return errs
}
