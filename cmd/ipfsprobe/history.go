package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/nao1215/ipfsprobe/internal/config"
	"github.com/nao1215/ipfsprobe/internal/database"
	"github.com/nao1215/ipfsprobe/internal/model"
)

// NewHistoryCmd creates the history subcommand.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [dataset]",
		Short: "Show stored measurements and their moving averages",
		Long: `History lists the measurements stored in the database, oldest first.

Once a full window of runs is available, every run also shows the moving
averages of the item availability, the website availability and the number
of reachable providers.`,
		Example: `  # All runs of the English dataset
  ipfsprobe history en

  # The last 24 runs of a series as Markdown
  ipfsprobe history en -l hourly --limit 24 --markdown

  # Which datasets have been measured
  ipfsprobe history --list-datasets

  # How often a provider was seen and reachable
  ipfsprobe history --provider 12D3KooW...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("label", "l", "", "Only show runs of this series")
	cmd.Flags().Int("limit", 0, "Only show the most recent runs (0 = all)")
	cmd.Flags().Int("window", model.DefaultHistoryWindow, "Moving average window in runs")
	cmd.Flags().BoolP("list-datasets", "L", false, "List the measured datasets")
	cmd.Flags().String("provider", "", "Show how often a provider was seen and reachable")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output as Markdown")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")

	return cmd
}

// historyOptions holds the flags that only the history command has.
type historyOptions struct {
	dataset      string
	label        string
	limit        int
	window       int
	listDatasets bool
	provider     string
}

func historyOptionsFrom(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	if len(args) > 0 {
		opts.dataset = args[0]
	}
	if opts.label, err = cmd.Flags().GetString("label"); err != nil {
		return opts, err
	}
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.window, err = cmd.Flags().GetInt("window"); err != nil {
		return opts, err
	}
	if opts.listDatasets, err = cmd.Flags().GetBool("list-datasets"); err != nil {
		return opts, err
	}
	if opts.provider, err = cmd.Flags().GetString("provider"); err != nil {
		return opts, err
	}
	if opts.limit < 0 {
		return opts, fmt.Errorf("configuration error: --limit must not be negative")
	}
	if opts.window <= 0 {
		return opts, fmt.Errorf("configuration error: --window must be positive")
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}
	opts, err := historyOptionsFrom(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out, closeOut, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	err = runHistory(ctx, db, cfg, opts, out)
	return multierr.Append(err, closeOut())
}

func runHistory(ctx context.Context, db *database.MeasurementDB, cfg *config.Config, opts historyOptions, out io.Writer) error {
	switch {
	case opts.listDatasets:
		datasets, err := db.ListDatasets(ctx)
		if err != nil {
			return err
		}
		for _, name := range datasets {
			if _, err := fmt.Fprintln(out, name); err != nil {
				return err
			}
		}
		return nil

	case opts.provider != "":
		seen, reachable, err := db.ProviderHistory(ctx, opts.provider)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Provider: %s\nSeen in runs: %d\nReachable in runs: %d\n",
			opts.provider, seen, reachable)
		return err
	}

	runs, err := db.ListRuns(ctx, database.RunFilter{
		Dataset: opts.dataset,
		Label:   opts.label,
		Limit:   opts.limit,
	})
	if err != nil {
		return err
	}
	if len(runs) == 0 && !cfg.JSONReport {
		_, err := fmt.Fprintln(out, "No measurements found.")
		return err
	}

	_, err = newHistoryWriter(cfg, out).WriteHistory(model.BuildHistory(runs, opts.window))
	return err
}
