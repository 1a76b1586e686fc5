package main

import (
	"errors"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"smart-browser-agent/internal/domain/entity"
)

func isQuitWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Read tasks from stdin and run them on one browser session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			showProgress := interactiveOutput()
			c, err := a.container(showProgress)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			ctx := cmd.Context()
			sessionID := c.Config.Agent.DefaultSessionID
			color.New(color.FgCyan, color.Bold).Println("Smart browser agent. Type 'quit' to exit.")

			for {
				line, err := a.console.AskQuestion(ctx, "Enter a task:")
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				if isQuitWord(line) {
					return nil
				}
				if line == "" {
					continue
				}

				res, err := c.TaskExecutor.Execute(ctx, entity.NewTask(line, sessionID))
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					color.New(color.FgRed).Printf("Task failed: %v\n", err)
					continue
				}
				printResult(res, showProgress)
			}
		},
	}
}
