package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/ipfsprobe/internal/config"
)

// addMeasureFlags registers the flags shared by probe and monitor.
func addMeasureFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Sampling
	f.StringP("label", "l", config.DefaultLabel, "Name of the measurement series")
	f.IntP("sample", "n", 0, "Number of rows to probe per dataset (0 = every row)")
	f.Int64P("seed", "s", config.DefaultSeed, "Seed for sampling and retry jitter")

	// Probing
	f.Int("item-concurrency", config.DefaultItemConcurrency, "Items probed at the same time")
	f.Int("peer-concurrency", config.DefaultPeerConcurrency, "Providers probed at the same time")
	f.Int("website-attempts", config.DefaultWebsiteAttempts, "Website fetches per item")
	f.Int("provider-attempts", config.DefaultProviderAttempts, "Provider lookups per item")
	f.Int("peer-attempts", config.DefaultPeerAttempts, "Address lookups per provider")
	f.Bool("no-retry-empty", false, "Accept a provider lookup without output as final")
	f.Duration("fetch-timeout", config.DefaultFetchTimeout, "Timeout of one website fetch")
	f.Duration("call-timeout", config.DefaultCallTimeout, "Timeout of one IPFS daemon lookup")
	f.Duration("max-jitter", config.DefaultMaxJitter, "Upper bound of the random sleep before daemon lookups")
	f.Float64("rate-limit", 0, "Daemon lookups per second (0 = unlimited)")
	f.String("scheme", config.DefaultScheme, "Scheme used to load the original links (http or https)")

	// Daemon
	f.String("ipfs-binary", config.DefaultIPFSBinary, "kubo binary")
	f.String("api-addr", config.DefaultAPIAddr, "kubo RPC API address")
	f.Duration("startup-wait", config.DefaultStartupWait, "Maximum time to wait for a started daemon")
	f.Bool("no-daemon-start", false, "Never start or restart the IPFS daemon")

	// Output
	f.StringP("output-dir", "d", "", "Root directory of the result files (default: XDG data directory)")
	f.Bool("no-cleaned", false, "Do not write item results without unreachable providers")
	f.Bool("save-json", false, "Also write the measurement as JSON")
	f.Bool("save-markdown", false, "Also write a Markdown summary")
	f.Bool("save-xlsx", false, "Also write an Excel workbook")
	f.Bool("no-db", false, "Do not store measurements in the database")
	f.String("db-dir", "", "Database directory (default: XDG data directory)")
	f.BoolP("json", "j", false, "Print the summary as JSON (mutually exclusive with --markdown)")
	f.BoolP("markdown", "m", false, "Print the summary as Markdown (mutually exclusive with --json)")
	f.StringP("output", "o", "", "Write the summary to this file instead of stdout")
}

// changedFlags copies the value of every flag the user set into the
// config. Flags left at their default keep the profile's value.
type changedFlags struct {
	fs  *pflag.FlagSet
	err error
}

func (c *changedFlags) set(name string, apply func() error) {
	if c.err != nil || c.fs.Lookup(name) == nil || !c.fs.Changed(name) {
		return
	}
	if err := apply(); err != nil {
		c.err = fmt.Errorf("flag --%s: %w", name, err)
	}
}

func (c *changedFlags) str(name string, dst *string) {
	c.set(name, func() (err error) { *dst, err = c.fs.GetString(name); return })
}

func (c *changedFlags) integer(name string, dst *int) {
	c.set(name, func() (err error) { *dst, err = c.fs.GetInt(name); return })
}

func (c *changedFlags) boolean(name string, dst *bool) {
	c.set(name, func() (err error) { *dst, err = c.fs.GetBool(name); return })
}

// negated sets dst to the inverse of a --no-* flag.
func (c *changedFlags) negated(name string, dst *bool) {
	c.set(name, func() error {
		v, err := c.fs.GetBool(name)
		*dst = !v
		return err
	})
}

// boolFlag reads a boolean flag that may be absent, e.g. a persistent flag
// of the root command when a subcommand runs on its own.
func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

func stringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// buildConfig creates a Config from the defaults, the profile file and the
// flags of cmd, in increasing priority.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.LogJSON = boolFlag(cmd, "log-json")
	cfg.ConfigFilePath = stringFlag(cmd, "config")

	// An explicitly given profile must exist; the default locations are
	// optional.
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		profile, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.Profile = profile
		profile.Apply(cfg)
	case explicit:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	c := &changedFlags{fs: cmd.Flags()}
	c.str("label", &cfg.Label)
	c.integer("sample", &cfg.SampleSize)
	c.set("seed", func() (err error) { cfg.Seed, err = c.fs.GetInt64("seed"); return })
	c.integer("item-concurrency", &cfg.ItemConcurrency)
	c.integer("peer-concurrency", &cfg.PeerConcurrency)
	c.integer("website-attempts", &cfg.WebsiteAttempts)
	c.integer("provider-attempts", &cfg.ProviderAttempts)
	c.integer("peer-attempts", &cfg.PeerAttempts)
	c.negated("no-retry-empty", &cfg.RetryOnEmpty)
	c.set("fetch-timeout", func() (err error) { cfg.FetchTimeout, err = c.fs.GetDuration("fetch-timeout"); return })
	c.set("call-timeout", func() (err error) { cfg.CallTimeout, err = c.fs.GetDuration("call-timeout"); return })
	c.set("max-jitter", func() (err error) { cfg.MaxJitter, err = c.fs.GetDuration("max-jitter"); return })
	c.set("startup-wait", func() (err error) { cfg.StartupWait, err = c.fs.GetDuration("startup-wait"); return })
	c.set("rate-limit", func() (err error) { cfg.RateLimit, err = c.fs.GetFloat64("rate-limit"); return })
	c.str("scheme", &cfg.Scheme)
	c.str("ipfs-binary", &cfg.IPFSBinary)
	c.str("api-addr", &cfg.APIAddr)
	c.negated("no-daemon-start", &cfg.ManageDaemon)
	c.str("output-dir", &cfg.OutputDir)
	c.negated("no-cleaned", &cfg.CleanedOutput)
	c.boolean("save-json", &cfg.SaveJSON)
	c.boolean("save-markdown", &cfg.SaveMarkdown)
	c.boolean("save-xlsx", &cfg.SaveXLSX)
	c.negated("no-db", &cfg.SaveToDB)
	c.str("db-dir", &cfg.DBDir)
	c.boolean("json", &cfg.JSONReport)
	c.boolean("markdown", &cfg.MarkdownReport)
	c.str("output", &cfg.ReportFile)

	// monitor only
	c.set("interval", func() (err error) { cfg.Interval, err = c.fs.GetDuration("interval"); return })
	c.set("sample-percentage", func() (err error) {
		cfg.SamplePercentage, err = c.fs.GetFloat64("sample-percentage")
		return
	})
	c.integer("iterations", &cfg.MaxIterations)
	c.str("metrics-addr", &cfg.MetricsAddr)

	if c.err != nil {
		return nil, c.err
	}

	cfg.InputFiles = args
	return cfg, nil
}
