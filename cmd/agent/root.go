package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/di"
	"smart-browser-agent/internal/domain/entity"
	"smart-browser-agent/internal/infrastructure/config"
	"smart-browser-agent/internal/infrastructure/env"
	"smart-browser-agent/internal/infrastructure/userinteraction"
)

const closeTimeout = 30 * time.Second

type app struct {
	cfgFile string
	envDir  string
	v       *viper.Viper
	env     *env.EnvService
	console *userinteraction.Console
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&app{console: userinteraction.NewConsole()})
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Browser automation agent driven by a tool-calling language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.StringVar(&a.envDir, "env-dir", ".", "directory holding .env files")
	flags.StringP("session", "s", entity.DefaultSessionID, "browser session id")
	flags.String("engine", config.EngineRod, "browser engine: rod, playwright or static")
	flags.Bool("headless", true, "run the browser without a window")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		e, err := env.NewEnvService(a.envDir)
		if err != nil {
			return err
		}
		a.env = e
		v, err := config.NewViper(a.cfgFile)
		if err != nil {
			return err
		}
		for key, flag := range map[string]string{
			"agent.default_session_id": "session",
			"browser.engine":           "engine",
			"browser.headless":         "headless",
		} {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
		a.v = v
		return nil
	}

	root.AddCommand(
		newRunCmd(a),
		newInteractiveCmd(a),
		newScriptCmd(a),
		newServeCmd(a),
		newActionsCmd(),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.v, a.env)
}

// container builds the dependency graph; showProgress routes loop progress
// to the console.
func (a *app) container(showProgress bool) (*di.Container, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	var progress output.ProgressPort = output.NopProgress{}
	if showProgress {
		progress = a.console
	}
	c, err := di.NewContainer(cfg, di.WithProgress(progress))
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	return c, nil
}

func closeContainer(c *di.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		color.New(color.FgRed).Printf("Failed to close browser sessions: %v\n", err)
	}
}

// interactiveOutput reports whether loop progress should be rendered.
func interactiveOutput() bool {
	return !color.NoColor
}

func printResult(res *entity.TaskResult, progressShown bool) {
	if res.BudgetExceeded() {
		color.New(color.FgYellow).Printf("\nTask stopped after %d turns.\n", res.Iterations)
	}
	if !progressShown {
		fmt.Println(res.FinalAnswer)
	}
}
