package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ishine/mwdlp-go/internal/config"
	"github.com/ishine/mwdlp-go/internal/server"
	"github.com/ishine/mwdlp-go/internal/vocoder"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the streaming MWDLP10 vocoder HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := activeCfg

			if _, err := config.NormalizeBackend(cfg.Runtime.Backend); err != nil {
				return err
			}

			wt, err := vocoder.LoadWeightTable(cfg.Paths.WeightTablePath)
			if err != nil {
				return fmt.Errorf("load weight table: %w", err)
			}
			defer wt.Close()

			srv := server.New(cfg, wt)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	return cmd
}
