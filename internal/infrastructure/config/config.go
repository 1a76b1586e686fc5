package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smart-browser-agent/internal/infrastructure/logger"
)

const EnvPrefix = "AGENT"

const (
	EngineRod        = "rod"
	EnginePlaywright = "playwright"
	EngineStatic     = "static"

	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderLangchain  = "langchain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var defaultBrowserArgs = []string{
	"--start-maximized",
	"--disable-blink-features=AutomationControlled",
	"--disable-extensions",
}

type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Browser BrowserConfig `mapstructure:"browser"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Logger  logger.Config `mapstructure:"logger"`
	Server  ServerConfig  `mapstructure:"server"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	Stream      bool    `mapstructure:"stream"`
}

type ViewportConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type BrowserConfig struct {
	Engine             string         `mapstructure:"engine"`
	Headless           bool           `mapstructure:"headless"`
	Viewport           ViewportConfig `mapstructure:"viewport"`
	UserAgent          string         `mapstructure:"user_agent"`
	NavigationTimeout  time.Duration  `mapstructure:"navigation_timeout"`
	SettleDelay        time.Duration  `mapstructure:"settle_delay"`
	ActionTimeout      time.Duration  `mapstructure:"action_timeout"`
	SlowMotion         time.Duration  `mapstructure:"slow_motion"`
	ScreenshotDir      string         `mapstructure:"screenshot_dir"`
	ScreenshotMaxWidth int            `mapstructure:"screenshot_max_width"`
	NoSandbox          bool           `mapstructure:"no_sandbox"`
	Bin                string         `mapstructure:"bin"`
	Args               []string       `mapstructure:"args"`
	Install            bool           `mapstructure:"install"`
}

type AgentConfig struct {
	MaxTurns          int           `mapstructure:"max_turns"`
	MaxDuration       time.Duration `mapstructure:"max_duration"`
	MaxObservationLen int           `mapstructure:"max_observation_len"`
	DefaultSessionID  string        `mapstructure:"default_session_id"`
	ScriptPause       time.Duration `mapstructure:"script_pause"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenRouter)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.stream", false)

	v.SetDefault("browser.engine", EngineRod)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.user_agent", defaultUserAgent)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.slow_motion", "0s")
	v.SetDefault("browser.screenshot_dir", "screenshots")
	v.SetDefault("browser.screenshot_max_width", 1920)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.args", defaultBrowserArgs)
	v.SetDefault("browser.install", false)

	v.SetDefault("agent.max_turns", 25)
	v.SetDefault("agent.max_duration", "10m")
	v.SetDefault("agent.max_observation_len", 20000)
	v.SetDefault("agent.default_session_id", "default")
	v.SetDefault("agent.script_pause", "2s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("server.addr", ":8080")
}

// NewViper returns a viper instance with defaults, the optional config
// file and AGENT_* environment overrides.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// Lookup resolves a plain environment variable; the env service satisfies it.
type Lookup interface {
	First(keys ...string) string
}

// Load unmarshals v, applies provider key fallbacks and validates.
func Load(v *viper.Viper, env Lookup) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if env != nil {
		cfg.applyFallbacks(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyFallbacks(env Lookup) {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI, ProviderLangchain:
			c.LLM.APIKey = env.First("OPENAI_API_KEY", "OPENROUTER_API_KEY")
		default:
			c.LLM.APIKey = env.First("OPENROUTER_API_KEY", "OPENAI_API_KEY")
		}
	}
	if c.LLM.Provider == ProviderOpenRouter {
		if m := env.First("OPENROUTER_MODEL_NAME"); m != "" {
			c.LLM.Model = m
		}
	}
}

// ResolvedBaseURL is the endpoint the chat client should use; empty means
// the client library default.
func (l LLMConfig) ResolvedBaseURL(openRouterDefault string) string {
	if l.BaseURL != "" {
		return l.BaseURL
	}
	if l.Provider == ProviderOpenRouter {
		return openRouterDefault
	}
	return ""
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case EngineRod, EnginePlaywright, EngineStatic:
	default:
		return fmt.Errorf("browser.engine must be one of %s, %s, %s; got %q",
			EngineRod, EnginePlaywright, EngineStatic, c.Browser.Engine)
	}
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderLangchain:
	default:
		return fmt.Errorf("llm.provider must be one of %s, %s, %s; got %q",
			ProviderOpenRouter, ProviderOpenAI, ProviderLangchain, c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required for provider %s (or set OPENROUTER_API_KEY / OPENAI_API_KEY)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be a positive integer")
	}
	if c.Agent.MaxDuration < 0 {
		return fmt.Errorf("agent.max_duration must not be negative")
	}
	if c.Agent.MaxObservationLen <= 0 {
		return fmt.Errorf("agent.max_observation_len must be a positive integer")
	}
	if strings.TrimSpace(c.Agent.DefaultSessionID) == "" {
		return fmt.Errorf("agent.default_session_id must not be empty")
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport must have positive width and height")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	return nil
}
