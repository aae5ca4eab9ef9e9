package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/nao1215/ipfsprobe/internal/config"
	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/measure"
	"github.com/nao1215/ipfsprobe/internal/metrics"
)

// NewProbeCmd creates the probe subcommand.
func NewProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [dataset.csv...]",
		Short: "Measure the availability of one or more datasets once",
		Long: `Probe samples rows from each dataset and measures them once.

A dataset is a CSV file with the header "Original Link,Resolved CID". Every
sampled item is checked in two stages:

  1. The website is loaded and the IPFS daemon is asked for providers of
     the CID.
  2. Every discovered provider is looked up for a routable IPv4 address.

Results are written below --output-dir and stored in the database. When no
file is given, the datasets listed in the profile are probed.`,
		Example: `  # Probe 100 random rows of the English dataset
  ipfsprobe probe -n 100 en_CID.csv

  # Probe with a fixed seed and print a JSON summary
  ipfsprobe probe -n 50 -s 7 --json tr_CID.csv`,
		RunE: runProbeCmd,
	}

	addMeasureFlags(cmd)
	return cmd
}

func runProbeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	jobs := probeJobs(cfg)
	if len(cfg.InputFiles) == 0 {
		for _, job := range jobs {
			cfg.InputFiles = append(cfg.InputFiles, job.File)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	return runProbe(ctx, cfg, jobs, cmd.OutOrStdout(), logger)
}

// probeJobs returns one job per dataset file. Without file arguments the
// profile's datasets are used with their own sample sizes.
func probeJobs(cfg *config.Config) []measure.Job {
	var jobs []measure.Job
	if len(cfg.InputFiles) > 0 {
		for _, file := range cfg.InputFiles {
			jobs = append(jobs, measure.Job{
				Dataset:    dataset.Name(file),
				File:       file,
				Label:      cfg.Label,
				SampleSize: cfg.SampleSize,
				Seed:       cfg.Seed,
			})
		}
		return jobs
	}
	if cfg.Profile == nil {
		return nil
	}
	for _, ds := range cfg.Profile.Datasets {
		name := ds.Name
		if name == "" {
			name = dataset.Name(ds.File)
		}
		size := ds.SampleSize
		if size == 0 {
			size = cfg.SampleSize
		}
		jobs = append(jobs, measure.Job{
			Dataset:    name,
			File:       ds.File,
			Label:      cfg.Label,
			SampleSize: size,
			Seed:       cfg.Seed,
		})
	}
	return jobs
}

func runProbe(ctx context.Context, cfg *config.Config, jobs []measure.Job, stdout io.Writer, logger *slog.Logger) (err error) {
	if cfg.ManageDaemon {
		daemon := newDaemon(cfg, logger)
		if err := daemon.EnsureRunning(ctx); err != nil {
			return fmt.Errorf("IPFS daemon is not available: %w", err)
		}
		defer func() {
			err = multierr.Append(err, daemon.Stop())
		}()
	}

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
	runner := newRunner(cfg, newGateway(cfg, mt, logger), db, mt, logger)

	out, closeOut, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeOut())
	}()
	writer := summaryWriter(cfg, out)

	var errs error
	for _, job := range jobs {
		run, runErr := runner.Run(ctx, job)
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				return multierr.Append(errs, runErr)
			}
			errs = multierr.Append(errs, runErr)
			continue
		}
		if _, err := writer.Write(run.Measurement); err != nil {
			return multierr.Append(errs, fmt.Errorf("failed to write summary: %w", err))
		}
		for _, f := range run.Files {
			logger.Info("result file written", "path", f)
		}
	}
	return errs
}
