package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Agentopians/WeAi/pkg/version"
)

const defaultConfigPath = "./config/operator.yaml"

var (
	// Global flags
	cfgFile   string
	debugMode bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "operator",
	Short: "WeAi Operator Node",
	Long: `WeAi Operator Node watches the TaskManager contract for new prompt
verification tasks, evaluates each prompt against the operator policy and
delivers a BLS signed verdict to the aggregator.

Key passwords are read from the environment:
  OPERATOR_BLS_KEY_PASSWORD
  OPERATOR_ECDSA_KEY_PASSWORD`,
	Version:      version.Version,
	SilenceUsage: true,
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
