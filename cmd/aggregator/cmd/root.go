package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Agentopians/WeAi/pkg/version"
)

const defaultConfigPath = "./config/aggregator.yaml"

var (
	// Global flags
	cfgFile   string
	debugMode bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aggregator",
	Short: "WeAi Quorum Aggregator",
	Long: `WeAi Quorum Aggregator publishes prompt verification tasks, collects
BLS signed verdicts from operators and settles finalized tasks on chain.

This application provides the following features:
- Task publishing
- Signature intake and stake weighted aggregation
- Settlement of finalized verdicts
- Task status API`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath,
		"config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"enable debug logging")

	rootCmd.SetVersionTemplate(fmt.Sprintf("Version: {{.Version}} (Commit: %s)\n", version.GitCommit))
}
