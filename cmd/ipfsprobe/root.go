package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ipfsprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipfsprobe",
		Short: "Measure content and peer availability on IPFS",
		Long: `ipfsprobe measures how available content published on IPFS is.

For every sampled (link, CID) pair it checks the website through its gateway
and asks the local IPFS daemon for the providers of the CID. It then tries to
find a routable address for every provider that was discovered.

A local kubo daemon is required. ipfsprobe starts it when it is not running
unless --no-daemon-start is given.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Profile file path (default: .ipfsprobe in current or home directory)")

	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewMonitorCmd())
	cmd.AddCommand(NewResolveCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
