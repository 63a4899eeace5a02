// Package cmd defines the conduit command line interface.
package cmd

import (
	"os"

	"conduit/pkg/logging"

	"github.com/spf13/cobra"
)

// rootCmd is the entry point when the application is called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Connect and drive multiple MCP servers from one place",
	Long: `conduit connects to MCP servers over stdio, SSE or streamable HTTP,
discovers their tools, resources and prompts, and exposes them through a
REST API, an interactive shell and an LLM-driven query loop.`,
	// SilenceUsage prevents cobra from printing the usage message on errors
	// that the application already reports. Errors themselves are reported
	// by Execute, which must work even before logging is initialized.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "conduit version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		logging.Fallback("Error: %v", err)
		os.Exit(1)
	}
}
