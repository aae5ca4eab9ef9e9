package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/gateway"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/pipeline"
)

const (
	linksSuffix   = "_links.txt"
	datasetSuffix = "_CID.csv"
)

// NewResolveCmd creates the resolve subcommand.
func NewResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <links-file>",
		Short: "Build a dataset by resolving links to CIDs",
		Long: `Resolve reads a list of links, one per line, resolves each of them to a
CID through IPNS and writes the pairs as a dataset CSV file.

Links that cannot be resolved are logged and left out. The output file is
named after the input with "_links.txt" replaced by "_CID.csv" unless -o is
given.`,
		Example: `  ipfsprobe resolve en.wikipedia-on-ipfs.org_links.txt
  ipfsprobe resolve -o en.csv --concurrency 8 links.txt`,
		Args: cobra.ExactArgs(1),
		RunE: runResolveCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Dataset file to write (default: derived from the input name)")
	cmd.Flags().Int("concurrency", pipeline.DefaultConcurrency, "Links resolved at the same time")
	cmd.Flags().Duration("call-timeout", 0, "Timeout of one resolution (default: the configured call timeout)")
	cmd.Flags().String("ipfs-binary", "", "kubo binary (default: the configured binary)")

	return cmd
}

func runResolveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		return fmt.Errorf("configuration error: --concurrency must be positive")
	}
	if cfg.CallTimeout <= 0 {
		return fmt.Errorf("configuration error: --call-timeout must be positive")
	}

	output := cfg.ReportFile
	if output == "" {
		output = resolvedFileName(args[0])
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	links, err := readLinks(args[0])
	if err != nil {
		return err
	}

	inputs, err := resolveLinks(ctx, newKubo(cfg, logger), links, concurrency, logger)
	if err != nil {
		return err
	}
	if err := writeDataset(output, inputs); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Resolved %d of %d links into %s\n", len(inputs), len(links), output)
	return err
}

// resolvedFileName derives the dataset file name from a links file name.
func resolvedFileName(linksFile string) string {
	dir, base := filepath.Split(linksFile)
	switch {
	case strings.HasSuffix(base, linksSuffix):
		base = strings.TrimSuffix(base, linksSuffix)
	default:
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(dir, base+datasetSuffix)
}

func readLinks(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path
	if err != nil {
		return nil, fmt.Errorf("failed to open links file: %w", err)
	}
	defer f.Close()
	return dataset.ReadLinks(f)
}

type resolution struct {
	index int
	input model.SampleInput
	err   error
}

// resolveLinks resolves links concurrently and returns the pairs that
// resolved, in input order.
func resolveLinks(ctx context.Context, resolver gateway.NameResolver, links []string, concurrency int, logger *slog.Logger) ([]model.SampleInput, error) {
	indexed := make([]int, len(links))
	for i := range links {
		indexed[i] = i
	}

	results, err := pipeline.Collect(ctx, indexed, func(ctx context.Context, i int) resolution {
		link := strings.TrimPrefix(strings.TrimPrefix(links[i], "https://"), "http://")
		resolved, err := resolver.ResolveName(ctx, link)
		return resolution{
			index: i,
			input: model.SampleInput{OriginalLink: link, ResolvedCID: resolved},
			err:   err,
		}
	}, pipeline.WithConcurrency(concurrency), pipeline.WithPoolLogger(logger), pipeline.WithPoolName("resolve"))
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b resolution) int { return cmp.Compare(a.index, b.index) })

	inputs := make([]model.SampleInput, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			logger.Warn("failed to resolve link", "link", r.input.OriginalLink, "error", r.err)
			continue
		}
		inputs = append(inputs, r.input)
	}
	return inputs, nil
}

func writeDataset(path string, inputs []model.SampleInput) (err error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-provided path
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return dataset.Write(f, inputs)
}
