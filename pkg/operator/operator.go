package operator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/common/contracts/ethereum"
	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
	"github.com/Agentopians/WeAi/pkg/common/types"
	"github.com/Agentopians/WeAi/pkg/config"
	"github.com/Agentopians/WeAi/pkg/policy"
)

const seenCapacity = 4096

// TaskSource delivers NewTaskCreated events. A start of zero means the
// current head.
type TaskSource interface {
	WatchNewTaskCreated(ctx context.Context, start uint64, pollInterval time.Duration, sink chan<- *ethereum.NewTaskCreatedEvent) (event.Subscription, error)
}

type Evaluator interface {
	Check(prompt string) policy.Result
}

// AggregatorClient posts signed verdicts to the aggregator.
type AggregatorClient interface {
	SubmitSignature(ctx context.Context, req *types.SignatureRequest) error
}

type Config struct {
	TaskSource   TaskSource
	Evaluator    Evaluator
	Signer       signer.AttestationSigner
	Aggregator   AggregatorClient
	PollInterval time.Duration
	// MaxConcurrent bounds in-flight deliveries
	MaxConcurrent int
	// MaxRequeues is how often an exhausted delivery is retried on later
	// ticks before it is dropped
	MaxRequeues int
	Retry       config.RetryConfig
}

// Operator watches for new tasks, evaluates their prompt and delivers a
// signed verdict to the aggregator.
type Operator struct {
	source       TaskSource
	evaluator    Evaluator
	signer       signer.AttestationSigner
	aggregator   AggregatorClient
	pollInterval time.Duration
	maxRequeues  int
	retry        config.RetryConfig

	sem  *semaphore.Weighted
	seen *seenTasks

	requeueMu sync.Mutex
	requeued  []*delivery

	wg sync.WaitGroup
}

func New(cfg *Config) (*Operator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Operator] config is nil")
	}
	if cfg.TaskSource == nil {
		return nil, fmt.Errorf("[Operator] task source not initialized")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("[Operator] evaluator not initialized")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("[Operator] signer not initialized")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("[Operator] aggregator client not initialized")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("[Operator] poll interval must be positive")
	}
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("[Operator] max concurrent deliveries must be at least 1")
	}
	if cfg.MaxRequeues < 0 {
		return nil, fmt.Errorf("[Operator] max requeues must not be negative")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("[Operator] retry max attempts must be at least 1")
	}

	return &Operator{
		source:       cfg.TaskSource,
		evaluator:    cfg.Evaluator,
		signer:       cfg.Signer,
		aggregator:   cfg.Aggregator,
		pollInterval: cfg.PollInterval,
		maxRequeues:  cfg.MaxRequeues,
		retry:        cfg.Retry,
		sem:          semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		seen:         newSeenTasks(seenCapacity),
	}, nil
}

// Run processes tasks until ctx is done or the task subscription fails.
// In-flight deliveries are cancelled and waited for before it returns.
func (o *Operator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		o.wg.Wait()
	}()

	tasks := make(chan *ethereum.NewTaskCreatedEvent)
	sub, err := o.source.WatchNewTaskCreated(ctx, 0, o.pollInterval, tasks)
	if err != nil {
		return fmt.Errorf("[Operator] failed to subscribe to new tasks: %w", err)
	}
	defer sub.Unsubscribe()

	log.Info().
		Stringer("operator_id", o.signer.OperatorID()).
		Dur("poll_interval", o.pollInterval).
		Msg("[Operator] Watching for new tasks")

	requeueTicker := time.NewTicker(o.pollInterval)
	defer requeueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Operator] Stopping operator: %v", ctx.Err())
			return nil

		case err := <-sub.Err():
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("subscription closed")
			}
			log.Printf("[Operator] Task subscription error: %v", err)
			return fmt.Errorf("[Operator] task subscription error: %w", err)

		case ev := <-tasks:
			o.handleTask(ctx, ev)

		case <-requeueTicker.C:
			o.flushRequeued(ctx)
		}
	}
}

func (o *Operator) handleTask(ctx context.Context, ev *ethereum.NewTaskCreatedEvent) {
	task := ev.Task
	if task.Type != types.TaskTypeVerifyInstructions {
		log.Warn().
			Uint32("task_index", task.Index).
			Stringer("task_type", task.Type).
			Msg("[Operator] Skipping task of unsupported type")
		return
	}
	if !o.seen.add(task.Index) {
		log.Debug().Uint32("task_index", task.Index).Msg("[Operator] Task already handled")
		return
	}

	res := o.evaluator.Check(task.Prompt)
	verdict := res.Verdict()
	log.Info().
		Uint32("task_index", task.Index).
		Bool("length_ok", res.LengthOK).
		Bool("keyword_ok", res.KeywordOK).
		Bool("verdict", verdict).
		Msg("[Operator] Evaluated task")

	sig, err := o.signer.SignAttestation(task.Index, verdict)
	if err != nil {
		metric.RecordError("sign")
		log.Error().Err(err).Uint32("task_index", task.Index).Msg("[Operator] Failed to sign verdict")
		return
	}

	req, err := types.NewSignatureRequest(types.Attestation{
		TaskIndex:     task.Index,
		OperatorID:    o.signer.OperatorID(),
		Verdict:       verdict,
		Signature:     sig,
		ObservedBlock: ev.BlockNumber,
	})
	if err != nil {
		metric.RecordError("sign")
		log.Error().Err(err).Uint32("task_index", task.Index).Msg("[Operator] Failed to build signature request")
		return
	}

	o.dispatch(ctx, &delivery{req: req})
}

func (o *Operator) requeue(d *delivery) {
	o.requeueMu.Lock()
	defer o.requeueMu.Unlock()
	o.requeued = append(o.requeued, d)
}

func (o *Operator) flushRequeued(ctx context.Context) {
	o.requeueMu.Lock()
	pending := o.requeued
	o.requeued = nil
	o.requeueMu.Unlock()

	for _, d := range pending {
		o.dispatch(ctx, d)
	}
}

// seenTasks remembers the most recent task indices up to a fixed capacity.
type seenTasks struct {
	mu    sync.Mutex
	set   map[uint32]struct{}
	order []uint32
	next  int
}

func newSeenTasks(capacity int) *seenTasks {
	return &seenTasks{
		set:   make(map[uint32]struct{}, capacity),
		order: make([]uint32, 0, capacity),
	}
}

// add reports whether idx was not yet present.
func (s *seenTasks) add(idx uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[idx]; ok {
		return false
	}
	if len(s.order) < cap(s.order) {
		s.order = append(s.order, idx)
	} else {
		delete(s.set, s.order[s.next])
		s.order[s.next] = idx
		s.next = (s.next + 1) % len(s.order)
	}
	s.set[idx] = struct{}{}
	return true
}
