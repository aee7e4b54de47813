package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/common/contracts/ethereum"
	"github.com/Agentopians/WeAi/pkg/common/types"
	"github.com/Agentopians/WeAi/pkg/config"
)

var ErrTaskIndexMismatch = errors.New("task index could not be confirmed against the stored task hash")

// ChainClient is the ledger surface the publisher needs.
type ChainClient interface {
	CreateNewTask(ctx context.Context, taskType types.TaskType, prompt string, thresholdPercent uint32, quorumNumbers []byte) (*gethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error)
	TaskFromReceipt(receipt *gethtypes.Receipt) (*ethereum.NewTaskCreatedEvent, error)
	LatestTaskNum(ctx context.Context) (uint32, error)
	TaskHash(ctx context.Context, taskIndex uint32) ([32]byte, error)
	HashTask(task types.Task) ([32]byte, error)
	GetQuorumOperators(ctx context.Context, quorumNumbers []byte, blockNumber uint32) ([]types.OperatorInfo, error)
}

type TaskInitializer interface {
	InitializeTask(task types.Task, operators []types.OperatorInfo, timeToExpiry time.Duration) error
}

type Config struct {
	ChainClient   ChainClient
	Aggregator    TaskInitializer
	QuorumNumbers []byte
	TimeToExpiry  time.Duration
	Retry         config.RetryConfig
}

// Publisher creates tasks on chain and registers them with the aggregator.
type Publisher struct {
	chainClient   ChainClient
	aggregator    TaskInitializer
	quorumNumbers []byte
	timeToExpiry  time.Duration
	retry         config.RetryConfig
}

func NewPublisher(cfg *Config) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Publisher] config is nil")
	}
	if cfg.ChainClient == nil {
		return nil, fmt.Errorf("[Publisher] chain client not initialized")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("[Publisher] aggregator not initialized")
	}
	if len(cfg.QuorumNumbers) == 0 {
		return nil, fmt.Errorf("[Publisher] quorum numbers are empty")
	}
	if cfg.TimeToExpiry <= 0 {
		return nil, fmt.Errorf("[Publisher] time to expiry must be positive")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("[Publisher] retry max attempts must be at least 1")
	}
	return &Publisher{
		chainClient:   cfg.ChainClient,
		aggregator:    cfg.Aggregator,
		quorumNumbers: append([]byte(nil), cfg.QuorumNumbers...),
		timeToExpiry:  cfg.TimeToExpiry,
		retry:         cfg.Retry,
	}, nil
}

// PublishTask creates a VerifyInstructions task for prompt and initializes
// its aggregation. It returns the task index assigned on chain.
func (p *Publisher) PublishTask(ctx context.Context, prompt string, thresholdPercent uint32) (uint32, error) {
	if thresholdPercent == 0 || thresholdPercent > 100 {
		return 0, fmt.Errorf("[Publisher] threshold %d out of range", thresholdPercent)
	}

	var tx *gethtypes.Transaction
	err := withRetries(ctx, p.retry, "[Publisher] createNewTask", nil, func() error {
		var err error
		tx, err = p.chainClient.CreateNewTask(ctx, types.TaskTypeVerifyInstructions, prompt, thresholdPercent, p.quorumNumbers)
		return err
	})
	if err != nil {
		metric.RecordError("create_task")
		return 0, err
	}
	log.Info().Str("tx", tx.Hash().Hex()).Msg("[Publisher] createNewTask sent")

	// the tx is broadcast from here on, only waiting is retried
	var receipt *gethtypes.Receipt
	err = withRetries(ctx, p.retry, "[Publisher] wait createNewTask", notReverted, func() error {
		var err error
		receipt, err = p.chainClient.WaitMined(ctx, tx)
		return err
	})
	if err != nil {
		metric.RecordError("create_task")
		return 0, err
	}

	task, err := p.resolveTask(ctx, receipt, prompt, thresholdPercent)
	if err != nil {
		metric.RecordError("task_index")
		return 0, err
	}

	var operators []types.OperatorInfo
	err = withRetries(ctx, p.retry, "[Publisher] getQuorumOperators", nil, func() error {
		var err error
		operators, err = p.chainClient.GetQuorumOperators(ctx, task.QuorumNumbers, task.CreatedBlock)
		return err
	})
	if err != nil {
		metric.RecordError("quorum_operators")
		return 0, err
	}

	if err := p.aggregator.InitializeTask(task, operators, p.timeToExpiry); err != nil {
		metric.RecordError("initialize_task")
		return 0, fmt.Errorf("[Publisher] failed to initialize task %d: %w", task.Index, err)
	}

	log.Info().
		Uint32("task_index", task.Index).
		Uint32("created_block", task.CreatedBlock).
		Int("operators", len(operators)).
		Msg("[Publisher] Task published")
	return task.Index, nil
}

// resolveTask reads the created task from the receipt. Without a
// NewTaskCreated log it falls back to the task counter and accepts an index
// only if its stored hash matches the task we submitted.
func (p *Publisher) resolveTask(ctx context.Context, receipt *gethtypes.Receipt, prompt string, thresholdPercent uint32) (types.Task, error) {
	ev, err := p.chainClient.TaskFromReceipt(receipt)
	if err == nil {
		return ev.Task, nil
	}
	if !errors.Is(err, ethereum.ErrNoTaskEvent) {
		return types.Task{}, fmt.Errorf("[Publisher] failed to read task from receipt: %w", err)
	}

	log.Warn().Str("tx", receipt.TxHash.Hex()).Msg("[Publisher] No NewTaskCreated log in receipt, falling back to latestTaskNum")

	expected := types.Task{
		Type:             types.TaskTypeVerifyInstructions,
		Prompt:           prompt,
		CreatedBlock:     uint32(receipt.BlockNumber.Uint64()),
		QuorumNumbers:    p.quorumNumbers,
		ThresholdPercent: thresholdPercent,
	}
	want, err := p.chainClient.HashTask(expected)
	if err != nil {
		return types.Task{}, err
	}

	latest, err := p.chainClient.LatestTaskNum(ctx)
	if err != nil {
		return types.Task{}, err
	}

	// latestTaskNum is normally the next index to assign; the counter
	// value itself is tried as well
	candidates := []uint32{latest}
	if latest > 0 {
		candidates = []uint32{latest - 1, latest}
	}
	for _, idx := range candidates {
		got, err := p.chainClient.TaskHash(ctx, idx)
		if err != nil {
			return types.Task{}, err
		}
		if got == want {
			expected.Index = idx
			return expected, nil
		}
	}
	return types.Task{}, fmt.Errorf("%w: latestTaskNum %d, tx %s", ErrTaskIndexMismatch, latest, receipt.TxHash.Hex())
}
