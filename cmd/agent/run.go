package main

import (
	"strings"

	"github.com/spf13/cobra"

	"smart-browser-agent/internal/domain/entity"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task>",
		Short: "Run a single task and print the final answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showProgress := interactiveOutput()
			c, err := a.container(showProgress)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			task := entity.NewTask(strings.Join(args, " "), c.Config.Agent.DefaultSessionID)
			c.Logger.Info("Task started", "task", task.Instruction, "session", task.SessionID)

			res, err := c.TaskExecutor.Execute(cmd.Context(), task)
			if err != nil {
				c.Logger.Error("Task failed", "error", err)
				return err
			}
			c.Logger.Info("Task completed", "iterations", res.Iterations, "status", res.Status)
			printResult(res, showProgress)
			return nil
		},
	}
}
