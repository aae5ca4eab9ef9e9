package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/nao1215/ipfsprobe/internal/config"
	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/measure"
	"github.com/nao1215/ipfsprobe/internal/metrics"
)

// NewMonitorCmd creates the monitor subcommand.
func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [dataset.csv...]",
		Short: "Measure datasets repeatedly at a fixed interval",
		Long: `Monitor measures every dataset once per iteration and repeats at a
fixed interval until it is interrupted or --iterations is reached.

Iteration i uses the seed --seed + i, so a series can be reproduced. The
sample size of each dataset is fixed when the monitor starts, either from
--sample or as --sample-percentage of its rows.

When the IPFS daemon is found dead after a measurement, it is restarted and
the measurement is repeated with the same seed.`,
		Example: `  # Measure the datasets of the profile every hour
  ipfsprobe monitor

  # Three iterations, 30 minutes apart, with Prometheus metrics
  ipfsprobe monitor --interval 30m --iterations 3 --metrics-addr :9090 en_CID.csv`,
		RunE: runMonitorCmd,
	}

	addMeasureFlags(cmd)
	cmd.Flags().Duration("interval", config.DefaultInterval, "Time between the starts of two iterations")
	cmd.Flags().Float64("sample-percentage", config.DefaultSamplePercentage,
		"Share of rows sampled per dataset when --sample is not set (0 < p <= 1)")
	cmd.Flags().Int("iterations", 0, "Stop after this many iterations (0 = run until interrupted)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runMonitorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateMonitor(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	return runMonitor(ctx, cfg, cmd.OutOrStdout(), logger)
}

// monitorDatasets merges the profile's datasets with the files given as
// arguments. Arguments use the sample size of the command line.
func monitorDatasets(cfg *config.Config) []measure.Dataset {
	var datasets []measure.Dataset
	if cfg.Profile != nil {
		for _, ds := range cfg.Profile.Datasets {
			datasets = append(datasets, measure.Dataset{
				Name:             ds.Name,
				File:             ds.File,
				SampleSize:       ds.SampleSize,
				SamplePercentage: ds.SamplePercentage,
			})
		}
	}
	for _, file := range cfg.InputFiles {
		datasets = append(datasets, measure.Dataset{
			Name:       dataset.Name(file),
			File:       file,
			SampleSize: cfg.SampleSize,
		})
	}
	return datasets
}

func runMonitor(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (err error) {
	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			err = multierr.Append(err, db.Close())
		}()
	}

	mt := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, mt, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}()
	}

	runner := newRunner(cfg, newGateway(cfg, mt, logger), db, mt, logger)

	opts := []measure.MonitorOption{
		measure.WithLabel(cfg.Label),
		measure.WithBaseSeed(cfg.Seed),
		measure.WithInterval(cfg.Interval),
		measure.WithMaxIterations(cfg.MaxIterations),
		measure.WithSamplePercentage(cfg.SamplePercentage),
		measure.WithMonitorMetrics(mt),
		measure.WithMonitorLogger(logger),
	}
	if cfg.ManageDaemon {
		daemon := newDaemon(cfg, logger)
		opts = append(opts, measure.WithDaemon(daemon))
		defer func() {
			err = multierr.Append(err, daemon.Stop())
		}()
	}

	stats, err := measure.NewMonitor(runner, monitorDatasets(cfg), opts...).Run(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "Iterations: %d\nMeasurements: %d\nFailed: %d\nReplayed after daemon crash: %d\n",
		stats.Iterations, stats.Runs, stats.Failures, stats.Replays)
	return err
}

// serveMetrics starts an HTTP server exposing mt on /metrics.
func serveMetrics(addr string, mt *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mt.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
