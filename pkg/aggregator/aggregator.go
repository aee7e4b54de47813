package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
	"github.com/Agentopians/WeAi/pkg/common/types"
)

const (
	DefaultSweepInterval = time.Second
	DefaultRetention     = time.Hour
)

type Config struct {
	// How often open tasks are checked for expiry
	SweepInterval time.Duration
	// How long closed tasks stay queryable before they are pruned
	Retention time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Aggregator collects attestations per task and emits one FinalizedResult
// for each task whose quorum threshold is reached before it expires.
type Aggregator struct {
	mu    sync.RWMutex
	tasks map[uint32]*taskState

	results *resultQueue

	sweepInterval time.Duration
	retention     time.Duration
	now           func() time.Time
}

func New(cfg *Config) (*Aggregator, error) {
	if cfg == nil {
		return nil, errors.New("[Aggregator] config is nil")
	}
	if cfg.SweepInterval < 0 || cfg.Retention < 0 {
		return nil, errors.New("[Aggregator] sweep interval and retention must not be negative")
	}
	a := &Aggregator{
		tasks:         make(map[uint32]*taskState),
		results:       newResultQueue(),
		sweepInterval: cfg.SweepInterval,
		retention:     cfg.Retention,
		now:           cfg.Clock,
	}
	if a.sweepInterval == 0 {
		a.sweepInterval = DefaultSweepInterval
	}
	if a.retention == 0 {
		a.retention = DefaultRetention
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// InitializeTask registers task with its quorum snapshot. The task accepts
// attestations for timeToExpiry.
func (a *Aggregator) InitializeTask(task types.Task, operators []types.OperatorInfo, timeToExpiry time.Duration) error {
	state, err := newTaskState(task, operators, a.now(), timeToExpiry)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.tasks[task.Index]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateTask, task.Index)
	}
	a.tasks[task.Index] = state

	log.Info().
		Uint32("task_index", task.Index).
		Uint32("threshold_percent", task.ThresholdPercent).
		Int("quorum_size", len(state.quorum)).
		Str("total_stake", state.totalStake.String()).
		Time("expires_at", state.expiresAt).
		Msg("[Aggregator] Task initialized")
	return nil
}

// SubmitAttestation records att for its task. A later attestation from the
// same operator replaces the earlier one while the task is open.
func (a *Aggregator) SubmitAttestation(ctx context.Context, att types.Attestation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state := a.lookup(att.TaskIndex)
	if state == nil {
		metric.RecordAttestation("unknown_task")
		return fmt.Errorf("%w: %d", ErrUnknownTask, att.TaskIndex)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	now := a.now()
	if state.expireIfDue(now) {
		a.onExpired(state)
	}
	if !state.isOpen() {
		metric.RecordAttestation("closed")
		return fmt.Errorf("%w: task %d is %s", ErrTaskClosed, att.TaskIndex, state.status)
	}

	idx, ok := state.members[att.OperatorID]
	if !ok {
		metric.RecordAttestation("unauthorized")
		return fmt.Errorf("%w: %s", ErrUnauthorizedOperator, att.OperatorID)
	}

	valid, err := signer.Verify(att.Signature, state.quorum[idx].PubkeyG2, att.TaskIndex, att.Verdict)
	if err != nil || !valid {
		metric.RecordAttestation("invalid_signature")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return fmt.Errorf("%w: operator %s task %d", ErrInvalidSignature, att.OperatorID, att.TaskIndex)
	}

	if prev, replaced := state.received[att.OperatorID]; replaced && prev.Verdict != att.Verdict {
		log.Info().
			Uint32("task_index", att.TaskIndex).
			Stringer("operator_id", att.OperatorID).
			Bool("from", prev.Verdict).
			Bool("to", att.Verdict).
			Msg("[Aggregator] Operator changed verdict")
	}
	state.received[att.OperatorID] = att
	state.recomputeStake()
	metric.RecordAttestation("accepted")

	log.Debug().
		Uint32("task_index", att.TaskIndex).
		Stringer("operator_id", att.OperatorID).
		Bool("verdict", att.Verdict).
		Str("stake_true", state.stakeByVerdict[true].String()).
		Str("stake_false", state.stakeByVerdict[false].String()).
		Msg("[Aggregator] Attestation recorded")

	verdict, reached, ambiguous := state.winningVerdict()
	if ambiguous {
		log.Warn().
			Uint32("task_index", att.TaskIndex).
			Str("stake", state.stakeByVerdict[true].String()).
			Msg("[Aggregator] Both verdicts crossed the threshold with equal stake, task stays open")
		return nil
	}
	if !reached {
		return nil
	}

	res, err := a.finalize(state, verdict, now)
	if err != nil {
		metric.RecordError("aggregate_verification")
		log.Error().Err(err).Uint32("task_index", att.TaskIndex).Msg("[Aggregator] Failed to finalize task")
		return err
	}
	a.results.push(res)
	return nil
}

// finalize closes state with verdict and builds its result. Callers hold
// state.mu.
func (a *Aggregator) finalize(state *taskState, verdict bool, now time.Time) (*types.FinalizedResult, error) {
	var (
		contributors []types.OperatorID
		nonSigners   []types.OperatorID
		sigs         []*types.Signature
		keys         []*types.G2Point
		bitmap       = new(big.Int)
	)
	for i, op := range state.quorum {
		att, ok := state.received[op.ID]
		if !ok || att.Verdict != verdict {
			nonSigners = append(nonSigners, op.ID)
			continue
		}
		contributors = append(contributors, op.ID)
		sigs = append(sigs, att.Signature)
		keys = append(keys, op.PubkeyG2)
		bitmap.SetBit(bitmap, i, 1)
	}

	aggSig := signer.AggregateSignatures(sigs)
	apk := signer.AggregatePublicKeys(keys)
	ok, err := signer.Verify(aggSig, apk, state.task.Index, verdict)
	if err != nil {
		return nil, fmt.Errorf("[Aggregator] failed to verify aggregate signature of task %d: %w", state.task.Index, err)
	}
	if !ok {
		return nil, fmt.Errorf("[Aggregator] aggregate signature of task %d does not verify", state.task.Index)
	}

	state.status = types.TaskStatusFinalized
	state.verdict = verdict
	state.closedAt = now

	latency := now.Sub(state.createdAt)
	metric.RecordTaskFinalized(verdict, latency)
	log.Info().
		Uint32("task_index", state.task.Index).
		Bool("verdict", verdict).
		Int("signers", len(contributors)).
		Str("stake_for_verdict", state.stakeByVerdict[verdict].String()).
		Str("total_stake", state.totalStake.String()).
		Dur("latency", latency).
		Msg("[Aggregator] Task finalized")

	return &types.FinalizedResult{
		TaskIndex:             state.task.Index,
		Task:                  state.task,
		Verdict:               verdict,
		ContributingOperators: contributors,
		NonSigners:            nonSigners,
		SignerBitmap:          bitmap,
		AggregateSignature:    aggSig,
		SignersApkG2:          apk,
		StakeForVerdict:       new(big.Int).Set(state.stakeByVerdict[verdict]),
		TotalStake:            new(big.Int).Set(state.totalStake),
		FinalizedAt:           now,
	}, nil
}

// NextFinalizedResult blocks until a task is finalized or ctx is done.
// Results are returned in finalization order, one per task.
func (a *Aggregator) NextFinalizedResult(ctx context.Context) (*types.FinalizedResult, error) {
	return a.results.pop(ctx)
}

// TaskStatus returns a snapshot of the task's aggregation state.
func (a *Aggregator) TaskStatus(taskIndex uint32) (TaskSnapshot, error) {
	state := a.lookup(taskIndex)
	if state == nil {
		return TaskSnapshot{}, fmt.Errorf("%w: %d", ErrUnknownTask, taskIndex)
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.expireIfDue(a.now()) {
		a.onExpired(state)
	}
	return state.snapshot(), nil
}

func (a *Aggregator) lookup(taskIndex uint32) *taskState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tasks[taskIndex]
}

func (a *Aggregator) onExpired(state *taskState) {
	metric.RecordTaskExpired()
	log.Warn().
		Uint32("task_index", state.task.Index).
		Int("received", len(state.received)).
		Str("stake_true", state.stakeByVerdict[true].String()).
		Str("stake_false", state.stakeByVerdict[false].String()).
		Str("total_stake", state.totalStake.String()).
		Msg("[Aggregator] Task expired without quorum")
}
