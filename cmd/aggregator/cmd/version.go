package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Agentopians/WeAi/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print detailed version information about the aggregator.
This includes version number, build time, commit hash, and Go version.`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "WeAi Aggregator\n%s\n", version.Info())
}
