package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/dashboard"
)

func newUICmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the read-only status/heartbeat dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := dashboard.NewServer(a.user, a.cfg.Capital, logger)
			return server.Serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8081", "HTTP listen address")
	return cmd
}
