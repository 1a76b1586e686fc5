package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"smart-browser-agent/internal/domain/entity"
)

// Script is a sequence of tasks run one after another on one session.
type Script struct {
	Session string   `yaml:"session"`
	Pause   string   `yaml:"pause"`
	Tasks   []string `yaml:"tasks"`
}

func loadScript(path string) (*Script, time.Duration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, 0, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(s.Tasks) == 0 {
		return nil, 0, fmt.Errorf("script %s has no tasks", path)
	}
	var pause time.Duration
	if s.Pause != "" {
		if pause, err = time.ParseDuration(s.Pause); err != nil {
			return nil, 0, fmt.Errorf("script pause: %w", err)
		}
	}
	return &s, pause, nil
}

func newScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script <file.yaml>",
		Short: "Run a scripted sequence of tasks on one browser session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, pause, err := loadScript(args[0])
			if err != nil {
				return err
			}

			showProgress := interactiveOutput()
			c, err := a.container(showProgress)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			if script.Pause == "" {
				pause = c.Config.Agent.ScriptPause
			}
			sessionID := script.Session
			if sessionID == "" {
				sessionID = c.Config.Agent.DefaultSessionID
			}

			ctx := cmd.Context()
			for i, instruction := range script.Tasks {
				color.New(color.FgCyan, color.Bold).Printf("\n[%d/%d] %s\n", i+1, len(script.Tasks), instruction)

				res, err := c.TaskExecutor.Execute(ctx, entity.NewTask(instruction, sessionID))
				switch {
				case ctx.Err() != nil:
					return nil
				case err != nil:
					color.New(color.FgRed).Printf("Task failed: %v\n", err)
				default:
					printResult(res, showProgress)
				}

				if i < len(script.Tasks)-1 && pause > 0 {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(pause):
					}
				}
			}
			return nil
		},
	}
}
