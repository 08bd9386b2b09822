// Package main provides the entry point for the pgmedian CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sveljko/pgmedian/cmd/pgmedian/commands"
	"github.com/sveljko/pgmedian/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "pgmedian",
		Short: "pgmedian - incremental median over a value stream",
		Long: `pgmedian computes the median of a stream of values incrementally,
optionally over a sliding window, without re-sorting on every update.

Commands:
  run       Stream values and compute the median
  inspect   Decode and describe a state snapshot`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "pgmedian %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
