package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "strand",
		Short: "Fine-grained reactivity engine tooling",
		Long: `Strand is a fine-grained, pull-based reactivity engine for Go.

This CLI bundles the engine's development tooling:

  • demo     run a small live reactive graph
  • bench    measure propagation through signal/memo/effect graphs
  • inspect  serve live engine stats and events for devtools
  • version  print build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		benchCmd(),
		inspectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
