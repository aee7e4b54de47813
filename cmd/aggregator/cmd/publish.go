package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Agentopians/WeAi/pkg/aggregator/api"
	"github.com/Agentopians/WeAi/pkg/common/types"
)

var (
	publishURL       string
	publishPrompt    string
	publishThreshold uint32
	publishTimeout   time.Duration
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a verification task through a running aggregator",
	Long: `Publish a prompt verification task. The running aggregator creates the
task on chain and starts collecting signatures for it.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishURL, "url", "http://localhost:8090", "aggregator API url")
	publishCmd.Flags().StringVarP(&publishPrompt, "prompt", "p", "", "prompt to verify")
	publishCmd.Flags().Uint32Var(&publishThreshold, "threshold", 0, "quorum threshold percent (default from aggregator config)")
	publishCmd.Flags().DurationVar(&publishTimeout, "timeout", 2*time.Minute, "request timeout")
	_ = publishCmd.MarkFlagRequired("prompt")
}

func runPublish(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(api.PublishTaskParams{
		Prompt:           publishPrompt,
		ThresholdPercent: publishThreshold,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
	defer cancel()

	url := strings.TrimRight(publishURL, "/") + "/api/v1/tasks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach aggregator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure types.SignatureResponse
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return fmt.Errorf("aggregator returned %d: %s", resp.StatusCode, failure.Error)
	}

	var out api.PublishTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published task %d (%s)\n", out.TaskIndex, out.Status)
	return nil
}
