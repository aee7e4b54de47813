package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Agentopians/WeAi/pkg/common/contracts/ethereum"
	"github.com/Agentopians/WeAi/pkg/config"
)

// withRetries runs fn until it succeeds, fails with an error retryable
// rejects, or cfg.MaxAttempts is reached.
func withRetries(ctx context.Context, cfg config.RetryConfig, op string, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := cfg.Backoff(attempt)
		log.Printf("%s attempt %d/%d failed: %v, retrying in %s", op, attempt, cfg.MaxAttempts, err, wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, err)
}

// notReverted treats a reverted transaction as final.
func notReverted(err error) bool {
	return !errors.Is(err, ethereum.ErrTxReverted)
}
