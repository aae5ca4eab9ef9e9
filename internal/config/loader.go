package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default profile file name.
const DefaultConfigFile = ".ipfsprobe"

// ErrConfigNotFound is returned when the profile file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a profile from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
//
// Relative dataset paths are resolved against the directory of the file.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, ds := range cf.Datasets {
		if ds.File == "" {
			return nil, fmt.Errorf("%s: dataset %d has no file", path, i+1)
		}
		if !filepath.IsAbs(ds.File) {
			cf.Datasets[i].File = filepath.Join(base, ds.File)
		}
	}

	return &cf, nil
}

// FindConfigFile searches for the profile file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .ipfsprobe in the current directory
// 3. Look for .ipfsprobe in the user's home directory
//
// Returns the path to the profile file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
