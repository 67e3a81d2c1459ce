// Package cli implements the modelbay command-line interface using Cobra.
// Each subcommand maps to one catalog or download operation (search, pull,
// pause, ...). Commands run against an in-process daemon instance.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "modelbay",
	Short: "modelbay — Sync and fetch AI models locally",
	Long: `modelbay maintains a merged catalog of models across hosts and downloads
artifacts with resumable transfers and integrity verification.

Search the catalog, pull what your machine can run, and serve it all over a
local HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
