package main

import (
	"github.com/spf13/cobra"

	httpadapter "smart-browser-agent/internal/adapter/http"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the agent over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.container(false)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			if addr == "" {
				addr = c.Config.Server.Addr
			}
			reqLogger := httpadapter.NewRequestLogger(c.Config.Logger.Level, c.Config.Logger.Format == "json")
			handler := httpadapter.NewHandler(c.TaskExecutor, c.Sessions, c.MetricsHandler(), c.Logger)

			return httpadapter.NewServer(addr, handler.Routes(reqLogger), c.Logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
