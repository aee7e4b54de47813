package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Agentopians/WeAi/pkg/common/contracts/bindings"
	weaitypes "github.com/Agentopians/WeAi/pkg/common/types"
)

const newTaskCreatedEvent = "NewTaskCreated"

var ErrNoTaskEvent = errors.New("[ChainClient] receipt has no NewTaskCreated log")

// CreateNewTask sends createNewTask and returns once the tx is broadcast.
func (c *ChainClient) CreateNewTask(ctx context.Context, taskType weaitypes.TaskType, prompt string, thresholdPercent uint32, quorumNumbers []byte) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.taskManager.Transact(opts, "createNewTask", uint8(taskType), prompt, thresholdPercent, quorumNumbers)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to send createNewTask: %w", err)
	}
	return tx, nil
}

// RespondToTask sends the aggregated signature for a finalized task.
func (c *ChainClient) RespondToTask(ctx context.Context, res *weaitypes.FinalizedResult) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	response := bindings.TaskManagerTaskResponse{
		ReferenceTaskIndex: res.TaskIndex,
		VerificationStatus: res.Verdict,
	}
	tx, err := c.taskManager.Transact(opts, "respondToTask", taskToBinding(res.Task), response, signatureBundle(res))
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to send respondToTask for task %d: %w", res.TaskIndex, err)
	}
	return tx, nil
}

// LatestTaskNum returns the TaskManager's task counter.
func (c *ChainClient) LatestTaskNum(ctx context.Context) (uint32, error) {
	var out []interface{}
	if err := c.taskManager.Call(&bind.CallOpts{Context: ctx}, &out, "latestTaskNum"); err != nil {
		return 0, fmt.Errorf("[ChainClient] failed to get latest task num: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint32)).(*uint32), nil
}

// TaskHash returns the stored hash for taskIndex.
func (c *ChainClient) TaskHash(ctx context.Context, taskIndex uint32) ([32]byte, error) {
	var out []interface{}
	if err := c.taskManager.Call(&bind.CallOpts{Context: ctx}, &out, "allTaskHashes", taskIndex); err != nil {
		return [32]byte{}, fmt.Errorf("[ChainClient] failed to get hash of task %d: %w", taskIndex, err)
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}

// HashTask computes keccak256(abi.encode(task)) the way the contract does.
func (c *ChainClient) HashTask(task weaitypes.Task) ([32]byte, error) {
	return HashTask(c.taskManagerABI, task)
}

func HashTask(parsed *abi.ABI, task weaitypes.Task) ([32]byte, error) {
	var h [32]byte
	ev, ok := parsed.Events[newTaskCreatedEvent]
	if !ok {
		return h, errors.New("[ChainClient] abi has no NewTaskCreated event")
	}
	encoded, err := ev.Inputs.NonIndexed().Pack(taskToBinding(task))
	if err != nil {
		return h, fmt.Errorf("[ChainClient] failed to encode task: %w", err)
	}
	copy(h[:], crypto.Keccak256(encoded))
	return h, nil
}

// ParseNewTaskCreated decodes a NewTaskCreated log.
func (c *ChainClient) ParseNewTaskCreated(log types.Log) (*NewTaskCreatedEvent, error) {
	ev := new(bindings.TaskManagerNewTaskCreated)
	if err := c.taskManager.UnpackLog(ev, newTaskCreatedEvent, log); err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to unpack NewTaskCreated: %w", err)
	}
	return &NewTaskCreatedEvent{
		Task:        taskFromBinding(ev.TaskIndex, ev.Task),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}

// TaskFromReceipt finds the NewTaskCreated log emitted by the TaskManager in
// receipt. It returns ErrNoTaskEvent when none is present.
func (c *ChainClient) TaskFromReceipt(receipt *types.Receipt) (*NewTaskCreatedEvent, error) {
	eventID := c.taskManagerABI.Events[newTaskCreatedEvent].ID
	for _, l := range receipt.Logs {
		if l == nil || l.Address != c.taskManagerAddress || len(l.Topics) == 0 || l.Topics[0] != eventID {
			continue
		}
		return c.ParseNewTaskCreated(*l)
	}
	return nil, ErrNoTaskEvent
}

func (c *ChainClient) newTaskCreatedTopic() common.Hash {
	return c.taskManagerABI.Events[newTaskCreatedEvent].ID
}
