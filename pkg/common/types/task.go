package types

import (
	"fmt"
	"math/big"
	"time"
)

// TaskType mirrors the TaskManager enum
type TaskType uint8

const (
	TaskTypeVerifyInstructions TaskType = 0
)

func (t TaskType) String() string {
	switch t {
	case TaskTypeVerifyInstructions:
		return "VerifyInstructions"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusFinalized TaskStatus = "finalized"
	TaskStatusExpired   TaskStatus = "expired"
)

// Task is a verification round as recorded by the TaskManager contract.
type Task struct {
	Index            uint32
	Type             TaskType
	Prompt           string
	CreatedBlock     uint32
	QuorumNumbers    []byte
	ThresholdPercent uint32
}

// FinalizedResult is emitted once per task that reaches quorum.
type FinalizedResult struct {
	TaskIndex uint32
	Task      Task
	Verdict   bool

	// ContributingOperators is sorted by operator id.
	ContributingOperators []OperatorID
	NonSigners            []OperatorID
	// SignerBitmap has bit i set when the i-th operator of the
	// sorted quorum contributed to the verdict.
	SignerBitmap *big.Int

	AggregateSignature *Signature
	SignersApkG2       *G2Point

	StakeForVerdict *big.Int
	TotalStake      *big.Int
	FinalizedAt     time.Time
}
