package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishine/mwdlp-go/internal/bench"
	"github.com/ishine/mwdlp-go/internal/config"
)

func newBenchCmd() *cobra.Command {
	var in string
	var runs int
	var concurrent int
	var format string
	var rtfThreshold float64

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark streaming synthesis latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := activeCfg

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			backend, err := config.NormalizeBackend(cfg.Runtime.Backend)
			if err != nil {
				return err
			}

			frames, err := readFeatureFile(in, cmd.InOrStdin())
			if err != nil {
				return err
			}

			run := func(_ int) (bench.RunResult, error) {
				start := time.Now()

				samples, _, err := synthesizeFrames(cfg, backend, frames, 0, 0)
				if err != nil {
					return bench.RunResult{}, err
				}

				dur := time.Since(start)
				audioDur := time.Duration(float64(len(samples)) / float64(cfg.Synth.SampleRate) * float64(time.Second))

				return bench.RunResult{
					Duration:    dur,
					WAVDuration: audioDur,
					RTF:         bench.CalcRTF(dur, audioDur),
				}, nil
			}

			var results []bench.RunResult
			if concurrent > 1 {
				results, err = bench.RunConcurrent(runs, func(i int) (bench.RunResult, error) {
					r, runErr := run(i)
					r.Index = i

					return r, runErr
				})
			} else {
				results = make([]bench.RunResult, 0, runs)
				for i := 0; i < runs; i++ {
					r, runErr := run(i)
					if runErr != nil {
						err = fmt.Errorf("run %d failed: %w", i+1, runErr)
						break
					}

					r.Index = i
					r.Cold = i == 0
					results = append(results, r)
				}
			}
			if err != nil {
				return err
			}

			durations := make([]time.Duration, len(results))
			for i, r := range results {
				durations[i] = r.Duration
			}
			stats := bench.ComputeStats(durations)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, os.Stdout)
			default:
				bench.FormatTable(results, stats, os.Stdout)
			}

			var totalRTF float64
			for _, r := range results {
				totalRTF += r.RTF
			}
			meanRTF := totalRTF / float64(len(results))

			return bench.CheckRTFThreshold(meanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Path to a raw little-endian float32 feature-frame file (default: stdin)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().IntVar(&concurrent, "concurrent", 1, "Run synthesis streams concurrently (each with its own VocoderState)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")

	return cmd
}
