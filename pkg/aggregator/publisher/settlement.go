package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/common/types"
	"github.com/Agentopians/WeAi/pkg/config"
)

type SettlementClient interface {
	RespondToTask(ctx context.Context, res *types.FinalizedResult) (*gethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error)
}

type ResultSource interface {
	NextFinalizedResult(ctx context.Context) (*types.FinalizedResult, error)
}

type SubmitterConfig struct {
	ChainClient SettlementClient
	Results     ResultSource
	Store       SubmittedStore
	Retry       config.RetryConfig
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Submitter settles finalized results on chain, once per task.
type Submitter struct {
	chainClient SettlementClient
	results     ResultSource
	store       SubmittedStore
	retry       config.RetryConfig
	now         func() time.Time
}

func NewSubmitter(cfg *SubmitterConfig) (*Submitter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Settlement] config is nil")
	}
	if cfg.ChainClient == nil {
		return nil, fmt.Errorf("[Settlement] chain client not initialized")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("[Settlement] result source not initialized")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("[Settlement] submitted store not initialized")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("[Settlement] retry max attempts must be at least 1")
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Submitter{
		chainClient: cfg.ChainClient,
		results:     cfg.Results,
		store:       cfg.Store,
		retry:       cfg.Retry,
		now:         now,
	}, nil
}

// Run settles results until ctx is done.
func (s *Submitter) Run(ctx context.Context) error {
	log.Printf("[Settlement] Submitter started")
	for {
		res, err := s.results.NextFinalizedResult(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[Settlement] Submitter stopped")
				return nil
			}
			return fmt.Errorf("[Settlement] failed to read finalized result: %w", err)
		}
		s.settle(ctx, res)
	}
}

func (s *Submitter) settle(ctx context.Context, res *types.FinalizedResult) {
	rec := SettlementRecord{
		TaskIndex: res.TaskIndex,
		Verdict:   res.Verdict,
		Status:    SettlementPending,
		UpdatedAt: s.now(),
	}
	claimed, err := s.store.MarkSubmitted(ctx, rec)
	if err != nil {
		// without a claim a second submitter may race us, so do not send
		metric.RecordSettlement(string(SettlementFailed))
		metric.RecordError("settlement_store")
		log.Error().Err(err).Uint32("task_index", res.TaskIndex).Msg("[Settlement] Failed to claim task")
		return
	}
	if !claimed {
		metric.RecordSettlement("skipped")
		log.Info().Uint32("task_index", res.TaskIndex).Msg("[Settlement] Task already settled, skipping")
		return
	}

	tx, err := s.submit(ctx, res)
	if err != nil {
		rec.Status = SettlementFailed
		rec.Error = err.Error()
		if tx != nil {
			rec.TxHash = tx.Hash().Hex()
		}
		rec.UpdatedAt = s.now()
		s.recordOutcome(ctx, rec)

		metric.RecordSettlement(string(SettlementFailed))
		metric.RecordError("settlement")
		log.Error().Err(err).Uint32("task_index", res.TaskIndex).Msg("[Settlement] Failed to settle task")
		return
	}

	rec.Status = SettlementSubmitted
	rec.TxHash = tx.Hash().Hex()
	rec.UpdatedAt = s.now()
	s.recordOutcome(ctx, rec)

	metric.RecordSettlement(string(SettlementSubmitted))
	log.Info().
		Uint32("task_index", res.TaskIndex).
		Bool("verdict", res.Verdict).
		Str("tx", rec.TxHash).
		Msg("[Settlement] Task settled")
}

// submit sends respondToTask and waits for it. Only the send is retried
// until a tx exists.
func (s *Submitter) submit(ctx context.Context, res *types.FinalizedResult) (*gethtypes.Transaction, error) {
	var tx *gethtypes.Transaction
	err := withRetries(ctx, s.retry, "[Settlement] respondToTask", nil, func() error {
		var err error
		tx, err = s.chainClient.RespondToTask(ctx, res)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = withRetries(ctx, s.retry, "[Settlement] wait respondToTask", notReverted, func() error {
		_, err := s.chainClient.WaitMined(ctx, tx)
		return err
	})
	return tx, err
}

func (s *Submitter) recordOutcome(ctx context.Context, rec SettlementRecord) {
	// the outcome is still recorded when the run is being cancelled
	storeCtx := ctx
	if errors.Is(ctx.Err(), context.Canceled) {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := s.store.RecordOutcome(storeCtx, rec); err != nil {
		log.Error().Err(err).Uint32("task_index", rec.TaskIndex).Msg("[Settlement] Failed to record outcome")
	}
}
