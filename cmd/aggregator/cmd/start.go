package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Agentopians/WeAi/cmd/aggregator/app"
	"github.com/Agentopians/WeAi/internal/zerolog"
	"github.com/Agentopians/WeAi/pkg/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the aggregator",
	Long: `Start the aggregator with the specified configuration.

This command will:
1. Load configuration from the specified file
2. Initialize all required components
3. Serve the intake API and settle finalized tasks
4. Handle graceful shutdown on interrupt`,
	PreRunE: validateStartFlags,
	RunE:    runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func validateStartFlags(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAggregatorConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	secrets, err := config.LoadAggregatorSecrets()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	zerolog.InitLogger(level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, secrets).Run(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	return nil
}
