package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/ipfsprobe/internal/config"
)

//go:embed templates/ipfsprobe.yaml
var configTemplate embed.FS

// configFileName is the default profile file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new ipfsprobe profile file",
		Long: `Init creates a new .ipfsprobe profile file in the current directory.

The generated file documents every setting with its default value and lists
example datasets for the monitor command.

Examples:
  # Create .ipfsprobe in current directory
  ipfsprobe init

  # Create the profile at a specific path
  ipfsprobe init -o profiles/weekly.yaml

  # Force overwrite existing file
  ipfsprobe init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the profile")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing profile file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("profile file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/ipfsprobe.yaml")
	if err != nil {
		return fmt.Errorf("failed to read profile template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created profile file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - The datasets measured by 'ipfsprobe monitor'")
	fmt.Fprintln(out, "  - Sample sizes, seeds and attempt budgets")
	fmt.Fprintln(out, "  - The IPFS daemon binary and API address")

	return nil
}
