package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ipfsprobe"

	// DefaultItemConcurrency is the number of items probed at the same time
	// in stage 1. Each item holds one HTTP request or one daemon lookup.
	DefaultItemConcurrency = 32

	// DefaultPeerConcurrency is the number of providers probed at the same
	// time in stage 2.
	DefaultPeerConcurrency = 16

	// DefaultWebsiteAttempts is the number of website fetches per item.
	DefaultWebsiteAttempts = 2

	// DefaultProviderAttempts is the number of provider lookups per item.
	DefaultProviderAttempts = 2

	// DefaultPeerAttempts is the number of address lookups per provider.
	DefaultPeerAttempts = 3

	// DefaultFetchTimeout bounds one website fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultCallTimeout bounds one call to the IPFS daemon. A provider
	// lookup that times out after printing providers still counts.
	DefaultCallTimeout = 15 * time.Second

	// DefaultMaxJitter is the upper bound of the random sleep before each
	// daemon lookup.
	DefaultMaxJitter = 5 * time.Second

	// DefaultLabel names the measurement series when none is given.
	DefaultLabel = "default"

	// DefaultSeed seeds sampling and retry jitter.
	DefaultSeed = 42

	// DefaultScheme is prepended to the original link for the website check.
	DefaultScheme = "https"

	// DefaultIPFSBinary is the kubo command line binary.
	DefaultIPFSBinary = "ipfs"

	// DefaultAPIAddr is the address of the kubo RPC API.
	DefaultAPIAddr = "127.0.0.1:5001"

	// DefaultStartupWait is how long to wait for a restarted daemon.
	DefaultStartupWait = 15 * time.Second

	// DefaultInterval is the time between the starts of two monitor
	// iterations.
	DefaultInterval = time.Hour

	// DefaultSamplePercentage is the share of each dataset sampled by the
	// monitor when a dataset sets no sample size of its own.
	DefaultSamplePercentage = 0.01

	// DefaultUserAgent identifies ipfsprobe in website requests.
	DefaultUserAgent = "ipfsprobe/1.0 (+https://github.com/nao1215/ipfsprobe)"

	// DefaultMaxBodySize limits the website body read for the availability
	// check.
	DefaultMaxBodySize = 2 * 1024 * 1024 // 2MB
)

// Config holds all configuration options for ipfsprobe.
// It is populated from the profile file and CLI flags and passed down
// explicitly; nothing reads global state.
type Config struct {
	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogJSON switches log output to JSON lines.
	LogJSON bool

	// ConfigFilePath is the path to the profile file.
	// If empty, .ipfsprobe is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// Profile holds the loaded profile file, if any.
	Profile *File

	// InputFiles are the dataset CSV files to measure.
	InputFiles []string

	// Label names the measurement series, e.g. "daily".
	Label string

	// SampleSize is the number of rows to sample per dataset. Zero means
	// every row.
	SampleSize int

	// SamplePercentage samples this share of each dataset instead of a fixed
	// size. Only used by the monitor.
	SamplePercentage float64

	// Seed seeds sampling and retry jitter. The monitor adds the iteration
	// number to it.
	Seed int64

	// ItemConcurrency and PeerConcurrency cap the two worker pools.
	ItemConcurrency int
	PeerConcurrency int

	// Attempt budgets of the probers.
	WebsiteAttempts  int
	ProviderAttempts int
	PeerAttempts     int

	// RetryOnEmpty retries a provider lookup that finished without output.
	RetryOnEmpty bool

	// FetchTimeout bounds one website fetch.
	FetchTimeout time.Duration

	// CallTimeout bounds one daemon lookup.
	CallTimeout time.Duration

	// MaxJitter bounds the random sleep before each daemon lookup.
	MaxJitter time.Duration

	// RateLimit caps daemon lookups per second. Zero means unlimited.
	RateLimit float64

	// Scheme is prepended to original links for the website check.
	Scheme string

	// UserAgent is sent with website requests.
	UserAgent string

	// MaxBodySize is the maximum website body size in bytes to read.
	MaxBodySize int64

	// IPFSBinary is the kubo binary used for lookups and to start the daemon.
	IPFSBinary string

	// APIAddr is the kubo RPC API address used for daemon health checks.
	APIAddr string

	// StartupWait is the maximum time to wait for a started daemon.
	StartupWait time.Duration

	// ManageDaemon lets ipfsprobe start the daemon when it is down and
	// restart it after a crash.
	ManageDaemon bool

	// OutputDir is the root of the result file tree.
	// Defaults to the XDG data directory.
	OutputDir string

	// CleanedOutput also writes the item results without the providers
	// that were found unreachable.
	CleanedOutput bool

	// SaveJSON, SaveMarkdown and SaveXLSX write additional result files.
	SaveJSON     bool
	SaveMarkdown bool
	SaveXLSX     bool

	// JSONReport and MarkdownReport select the summary printed after a run.
	// They are mutually exclusive; the default is plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the summary to this file instead of stdout.
	ReportFile string

	// DBDir is the directory of the SQLite measurement database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB stores every finished measurement in the database.
	SaveToDB bool

	// Interval is the time between the starts of two monitor iterations.
	Interval time.Duration

	// MaxIterations stops the monitor after this many iterations.
	// Zero runs until interrupted.
	MaxIterations int

	// MetricsAddr serves Prometheus metrics on this address in monitor mode.
	// Empty disables the endpoint.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Label:            DefaultLabel,
		Seed:             DefaultSeed,
		SamplePercentage: DefaultSamplePercentage,
		ItemConcurrency:  DefaultItemConcurrency,
		PeerConcurrency:  DefaultPeerConcurrency,
		WebsiteAttempts:  DefaultWebsiteAttempts,
		ProviderAttempts: DefaultProviderAttempts,
		PeerAttempts:     DefaultPeerAttempts,
		RetryOnEmpty:     true,
		FetchTimeout:     DefaultFetchTimeout,
		CallTimeout:      DefaultCallTimeout,
		MaxJitter:        DefaultMaxJitter,
		Scheme:           DefaultScheme,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		IPFSBinary:       DefaultIPFSBinary,
		APIAddr:          DefaultAPIAddr,
		StartupWait:      DefaultStartupWait,
		ManageDaemon:     true,
		OutputDir:        XDGDataDir(),
		CleanedOutput:    true,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
		Interval:         DefaultInterval,
	}
}

// XDGDataDir returns the XDG data directory for ipfsprobe.
// On Linux: ~/.local/share/ipfsprobe
// On macOS: ~/Library/Application Support/ipfsprobe
// On Windows: %LOCALAPPDATA%\ipfsprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ipfsprobe.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings shared by every measuring command and
// returns the first problem found.
func (c *Config) Validate() error {
	if len(c.InputFiles) == 0 {
		return ErrNoInput
	}
	return c.validateProbing()
}

// ValidateMonitor checks the configuration of the monitor command, which
// takes its datasets from the profile file as well as from InputFiles.
func (c *Config) ValidateMonitor() error {
	if len(c.InputFiles) == 0 && (c.Profile == nil || len(c.Profile.Datasets) == 0) {
		return ErrNoDatasets
	}
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.SampleSize == 0 && (c.SamplePercentage <= 0 || c.SamplePercentage > 1) {
		return ErrInvalidSamplePercentage
	}
	if c.MaxIterations < 0 {
		return ErrInvalidIterations
	}
	return c.validateProbing()
}

func (c *Config) validateProbing() error {
	if c.SampleSize < 0 {
		return ErrInvalidSampleSize
	}
	if c.ItemConcurrency <= 0 || c.PeerConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.WebsiteAttempts <= 0 || c.ProviderAttempts <= 0 || c.PeerAttempts <= 0 {
		return ErrInvalidAttempts
	}
	if c.FetchTimeout <= 0 || c.CallTimeout <= 0 || c.StartupWait <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxJitter < 0 {
		return ErrInvalidJitter
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return ErrInvalidScheme
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
