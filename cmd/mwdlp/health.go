package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ishine/mwdlp-go/internal/server"
)

func newHealthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the vocoder server's health endpoint",
		RunE: func(_ *cobra.Command, _ []string) error {
			if addr == "" {
				addr = activeCfg.Server.ListenAddr
			}

			if err := server.ProbeHTTP(addr); err != nil {
				return err
			}

			_, err := fmt.Fprintln(os.Stdout, "ok")

			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address to probe")

	return cmd
}
