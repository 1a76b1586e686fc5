package di

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/browser/static"
	"smart-browser-agent/internal/infrastructure/config"
	"smart-browser-agent/internal/infrastructure/llm/langchain"
	"smart-browser-agent/internal/infrastructure/llm/openrouter"
	"smart-browser-agent/internal/infrastructure/logger"
)

const searchPage = `<html><head><title>Search Demo</title></head><body>
<form><input type="search" name="q" placeholder="Search..."><button type="submit">Search</button></form>
<a href="/about">About us</a>
</body></html>`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("llm.api_key", "test-key")
	v.Set("browser.engine", config.EngineStatic)
	v.Set("browser.settle_delay", "0s")
	v.Set("browser.screenshot_dir", t.TempDir())
	cfg, err := config.Load(v, nil)
	require.NoError(t, err)
	return cfg
}

// planLLM plays back one response per call and records system prompts.
type planLLM struct {
	mu      sync.Mutex
	plan    []*output.ChatResponse
	systems []string
}

func (l *planLLM) Chat(_ context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.systems = append(l.systems, req.Messages[0].Content)
	if len(l.plan) == 0 {
		return &output.ChatResponse{Content: "done"}, nil
	}
	next := l.plan[0]
	l.plan = l.plan[1:]
	return next, nil
}

func TestContainer_EndToEndWithStaticEngine(t *testing.T) {
	engine := static.NewEngine(static.WithPage("https://demo.test/", searchPage))
	llm := &planLLM{plan: []*output.ChatResponse{
		{Invocations: []entity.ActionInvocation{
			{ID: "1", Name: entity.ActionNavigate, Arguments: `{"url":"https://demo.test/"}`},
			{ID: "2", Name: entity.ActionFill, Arguments: `{"description":"search box","text":"golang"}`},
			{ID: "3", Name: entity.ActionClick, Arguments: `{"description":"search button"}`},
		}},
		{Content: "Searched for golang."},
	}}

	c, err := NewContainer(testConfig(t), WithEngine(engine), WithLLM(llm), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer c.Close(context.Background())

	res, err := c.TaskExecutor.Execute(context.Background(), entity.NewTask("search for golang", "demo"))
	require.NoError(t, err)

	assert.Equal(t, "Searched for golang.", res.FinalAnswer)
	assert.Equal(t, entity.TaskStatusCompleted, res.Status)

	var observations []string
	for _, turn := range res.Transcript {
		if turn.Role == entity.RoleObservation {
			observations = append(observations, turn.Content)
		}
	}
	require.Len(t, observations, 3)
	assert.Equal(t, "Successfully navigated to https://demo.test/. Page title: Search Demo", observations[0])
	assert.True(t, strings.HasPrefix(observations[1], "Successfully filled search box with text"), observations[1])
	assert.True(t, strings.HasPrefix(observations[2], "Successfully clicked: search button"), observations[2])

	require.Len(t, llm.systems, 2)
	assert.Contains(t, llm.systems[0], "Current URL: None")
	assert.Contains(t, llm.systems[1], "Current URL: https://demo.test/")
	assert.Contains(t, llm.systems[1], `- click "search button"`)
	assert.Contains(t, llm.systems[1], "wait_for_element")

	snap := c.Sessions.Snapshot("demo")
	assert.Len(t, snap.CompletedActions, 3)

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 0, c.Sessions.Len())
}

func TestContainer_SelectsAdapters(t *testing.T) {
	cfg := testConfig(t)

	c, err := NewContainer(cfg, WithLogger(logger.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, "static", c.Engine.Name())
	assert.IsType(t, &openrouter.OpenRouterAdapter{}, c.LLM)
	assert.NotNil(t, c.MetricsHandler())

	cfg.LLM.Provider = config.ProviderLangchain
	c, err = NewContainer(cfg, WithLogger(logger.NewNop()))
	require.NoError(t, err)
	assert.IsType(t, &langchain.Adapter{}, c.LLM)

	cfg.Browser.Engine = config.EngineRod
	c, err = NewContainer(cfg, WithLogger(logger.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, "rod", c.Engine.Name())

	cfg.Browser.Engine = config.EnginePlaywright
	c, err = NewContainer(cfg, WithLogger(logger.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, "playwright", c.Engine.Name())
	assert.NoError(t, c.Close(context.Background()))

	cfg.Browser.Engine = "selenium"
	_, err = NewContainer(cfg, WithLogger(logger.NewNop()))
	assert.ErrorContains(t, err, "unknown browser engine")
}

// launchRecorder captures the options every launch receives.
type launchRecorder struct {
	*static.Engine
	mu   sync.Mutex
	opts []output.LaunchOptions
}

func (r *launchRecorder) Launch(ctx context.Context, opts output.LaunchOptions) (output.BrowserContext, error) {
	r.mu.Lock()
	r.opts = append(r.opts, opts)
	r.mu.Unlock()
	return r.Engine.Launch(ctx, opts)
}

func TestContainer_LaunchOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.NoSandbox = true
	engine := &launchRecorder{Engine: static.NewEngine()}

	c, err := NewContainer(cfg, WithEngine(engine), WithLLM(&planLLM{}), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer c.Close(context.Background())

	_, err = c.Sessions.Acquire(context.Background(), "args")
	require.NoError(t, err)

	require.Len(t, engine.opts, 1)
	got := engine.opts[0]
	assert.True(t, got.NoSandbox)
	assert.Equal(t, cfg.Browser.UserAgent, got.UserAgent)
	assert.Equal(t, []string{
		"--start-maximized",
		"--disable-blink-features=AutomationControlled",
		"--disable-extensions",
	}, got.Args)
}

func TestPlaywrightConfig(t *testing.T) {
	cfg := testConfig(t)
	assert.False(t, playwrightConfig(cfg.Browser).Install)

	cfg.Browser.Install = true
	pc := playwrightConfig(cfg.Browser)
	assert.True(t, pc.Install)
	assert.Equal(t, cfg.Browser.ActionTimeout, pc.Timeout)
}
