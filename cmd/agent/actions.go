package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smart-browser-agent/internal/application/service"
)

func newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the actions available to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), service.DefaultActionRegistry().Describe())
			return nil
		},
	}
}
