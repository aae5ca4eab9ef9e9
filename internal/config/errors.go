package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.ValidateMonitor.
var (
	// ErrNoInput is returned when neither an input file nor a dataset is given.
	ErrNoInput = errors.New("no input specified: provide a dataset CSV file")

	// ErrNoDatasets is returned when the monitor has no datasets to measure.
	ErrNoDatasets = errors.New("no datasets configured: list them in the profile file or pass dataset files")

	// ErrInvalidSampleSize is returned when the sample size is negative.
	// Zero means every row of the dataset.
	ErrInvalidSampleSize = errors.New("invalid sample size: must be zero or positive")

	// ErrInvalidSamplePercentage is returned when the sample percentage is
	// outside (0, 1].
	ErrInvalidSamplePercentage = errors.New("invalid sample percentage: must be greater than 0 and at most 1")

	// ErrInvalidConcurrency is returned when a pool size is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidAttempts is returned when an attempt budget is not positive.
	ErrInvalidAttempts = errors.New("invalid attempts: must be positive")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidJitter is returned when the maximum retry jitter is negative.
	ErrInvalidJitter = errors.New("invalid jitter: must be non-negative")

	// ErrInvalidInterval is returned when the monitor interval is not positive.
	ErrInvalidInterval = errors.New("invalid interval: must be positive")

	// ErrInvalidIterations is returned when the monitor iteration limit is
	// negative. Zero means no limit.
	ErrInvalidIterations = errors.New("invalid iterations: must be zero (unlimited) or positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be zero (unlimited) or positive")

	// ErrInvalidScheme is returned when the website scheme is not http or https.
	ErrInvalidScheme = errors.New("invalid scheme: must be http or https")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
