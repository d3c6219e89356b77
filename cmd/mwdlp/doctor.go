package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ishine/mwdlp-go/internal/config"
	"github.com/ishine/mwdlp-go/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := activeCfg

			backend, err := config.NormalizeBackend(cfg.Runtime.Backend)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "backend: %s\n", backend)

			result := doctor.Run(doctor.Config{
				WeightTablePath: cfg.Paths.WeightTablePath,
				Backend:         backend,
				ORTLibraryPath:  cfg.Runtime.ORTLibraryPath,
				ORTModelPath:    cfg.Runtime.ORTModelPath,
				SampleRate:      cfg.Synth.SampleRate,
			}, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}
