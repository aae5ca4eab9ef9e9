package config

import (
	"time"
)

// DatasetConfig describes one dataset measured by the monitor.
type DatasetConfig struct {
	// Name identifies the dataset in output paths and the database.
	// Defaults to the part of the file name before the first dot or
	// underscore.
	Name string `yaml:"name,omitempty"`

	// File is the dataset CSV with the header "Original Link,Resolved CID".
	File string `yaml:"file"`

	// SampleSize overrides the sample size for this dataset.
	SampleSize int `yaml:"sampleSize,omitempty"`

	// SamplePercentage overrides the sampled share for this dataset.
	SamplePercentage float64 `yaml:"samplePercentage,omitempty"`
}

// Settings are the defaults a profile file may override. Zero values leave
// the built-in default in place.
type Settings struct {
	Label            string        `yaml:"label,omitempty"`
	Seed             int64         `yaml:"seed,omitempty"`
	SampleSize       int           `yaml:"sampleSize,omitempty"`
	SamplePercentage float64       `yaml:"samplePercentage,omitempty"`
	ItemConcurrency  int           `yaml:"itemConcurrency,omitempty"`
	PeerConcurrency  int           `yaml:"peerConcurrency,omitempty"`
	WebsiteAttempts  int           `yaml:"websiteAttempts,omitempty"`
	ProviderAttempts int           `yaml:"providerAttempts,omitempty"`
	PeerAttempts     int           `yaml:"peerAttempts,omitempty"`
	RetryOnEmpty     *bool         `yaml:"retryOnEmpty,omitempty"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout,omitempty"`
	CallTimeout      time.Duration `yaml:"callTimeout,omitempty"`
	MaxJitter        time.Duration `yaml:"maxJitter,omitempty"`
	RateLimit        float64       `yaml:"rateLimit,omitempty"`
	Scheme           string        `yaml:"scheme,omitempty"`
	UserAgent        string        `yaml:"userAgent,omitempty"`
	IPFSBinary       string        `yaml:"ipfsBinary,omitempty"`
	APIAddr          string        `yaml:"apiAddr,omitempty"`
	StartupWait      time.Duration `yaml:"startupWait,omitempty"`
	OutputDir        string        `yaml:"outputDir,omitempty"`
	DBDir            string        `yaml:"dbDir,omitempty"`
	Interval         time.Duration `yaml:"interval,omitempty"`
	MetricsAddr      string        `yaml:"metricsAddr,omitempty"`
}

// File represents the structure of the .ipfsprobe profile file.
type File struct {
	// Defaults override the built-in defaults. CLI flags override both.
	Defaults Settings `yaml:"defaults,omitempty"`

	// Datasets are measured by the monitor in the listed order.
	Datasets []DatasetConfig `yaml:"datasets,omitempty"`
}

// Apply copies every non-zero setting of the profile into c.
func (cf *File) Apply(c *Config) {
	if cf == nil {
		return
	}
	s := cf.Defaults

	setString(&c.Label, s.Label)
	setString(&c.Scheme, s.Scheme)
	setString(&c.UserAgent, s.UserAgent)
	setString(&c.IPFSBinary, s.IPFSBinary)
	setString(&c.APIAddr, s.APIAddr)
	setString(&c.OutputDir, s.OutputDir)
	setString(&c.DBDir, s.DBDir)
	setString(&c.MetricsAddr, s.MetricsAddr)

	setInt(&c.SampleSize, s.SampleSize)
	setInt(&c.ItemConcurrency, s.ItemConcurrency)
	setInt(&c.PeerConcurrency, s.PeerConcurrency)
	setInt(&c.WebsiteAttempts, s.WebsiteAttempts)
	setInt(&c.ProviderAttempts, s.ProviderAttempts)
	setInt(&c.PeerAttempts, s.PeerAttempts)

	setDuration(&c.FetchTimeout, s.FetchTimeout)
	setDuration(&c.CallTimeout, s.CallTimeout)
	setDuration(&c.MaxJitter, s.MaxJitter)
	setDuration(&c.StartupWait, s.StartupWait)
	setDuration(&c.Interval, s.Interval)

	if s.Seed != 0 {
		c.Seed = s.Seed
	}
	if s.SamplePercentage != 0 {
		c.SamplePercentage = s.SamplePercentage
	}
	if s.RateLimit != 0 {
		c.RateLimit = s.RateLimit
	}
	if s.RetryOnEmpty != nil {
		c.RetryOnEmpty = *s.RetryOnEmpty
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
