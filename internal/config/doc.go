// Package config provides the configuration of ipfsprobe: defaults,
// validation, the YAML profile file and the XDG directories used for output
// and the measurement database.
package config
