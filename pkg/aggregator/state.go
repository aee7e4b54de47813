package aggregator

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Agentopians/WeAi/pkg/common/types"
)

// taskState is the aggregation state of one task. All fields after mu are
// guarded by it.
type taskState struct {
	mu sync.Mutex

	task       types.Task
	quorum     []types.OperatorInfo // sorted by id
	members    map[types.OperatorID]int
	totalStake *big.Int

	received       map[types.OperatorID]types.Attestation
	stakeByVerdict map[bool]*big.Int

	status    types.TaskStatus
	verdict   bool
	createdAt time.Time
	expiresAt time.Time
	closedAt  time.Time
}

// TaskSnapshot is a read-only view of a task's aggregation progress.
type TaskSnapshot struct {
	TaskIndex        uint32           `json:"task_index"`
	Status           types.TaskStatus `json:"status"`
	Verdict          *bool            `json:"verdict,omitempty"`
	ThresholdPercent uint32           `json:"threshold_percent"`
	QuorumSize       int              `json:"quorum_size"`
	Received         int              `json:"received"`
	TotalStake       *big.Int         `json:"total_stake"`
	StakeForTrue     *big.Int         `json:"stake_for_true"`
	StakeForFalse    *big.Int         `json:"stake_for_false"`
	ExpiresAt        time.Time        `json:"expires_at"`
}

func newTaskState(task types.Task, operators []types.OperatorInfo, now time.Time, timeToExpiry time.Duration) (*taskState, error) {
	if task.ThresholdPercent > 100 {
		return nil, fmt.Errorf("%w: threshold %d%% out of range", ErrInvalidTask, task.ThresholdPercent)
	}
	if timeToExpiry <= 0 {
		return nil, fmt.Errorf("%w: time to expiry must be positive", ErrInvalidTask)
	}
	if len(operators) == 0 {
		return nil, fmt.Errorf("%w: empty quorum", ErrInvalidTask)
	}

	quorum := make([]types.OperatorInfo, len(operators))
	copy(quorum, operators)
	types.SortOperators(quorum)

	members := make(map[types.OperatorID]int, len(quorum))
	total := new(big.Int)
	for i, op := range quorum {
		if _, dup := members[op.ID]; dup {
			return nil, fmt.Errorf("%w: operator %s listed twice", ErrInvalidTask, op.ID)
		}
		if op.Stake == nil || op.Stake.Sign() < 0 {
			return nil, fmt.Errorf("%w: operator %s has invalid stake", ErrInvalidTask, op.ID)
		}
		if op.PubkeyG2 == nil {
			return nil, fmt.Errorf("%w: operator %s has no G2 public key", ErrInvalidTask, op.ID)
		}
		members[op.ID] = i
		total.Add(total, op.Stake)
	}
	if total.Sign() == 0 {
		return nil, fmt.Errorf("%w: quorum has zero total stake", ErrInvalidTask)
	}

	return &taskState{
		task:           task,
		quorum:         quorum,
		members:        members,
		totalStake:     total,
		received:       make(map[types.OperatorID]types.Attestation),
		stakeByVerdict: map[bool]*big.Int{true: new(big.Int), false: new(big.Int)},
		status:         types.TaskStatusOpen,
		createdAt:      now,
		expiresAt:      now.Add(timeToExpiry),
	}, nil
}

func (s *taskState) isOpen() bool {
	return s.status == types.TaskStatusOpen
}

// expireIfDue moves an open task past its deadline to Expired.
func (s *taskState) expireIfDue(now time.Time) bool {
	if !s.isOpen() || now.Before(s.expiresAt) {
		return false
	}
	s.status = types.TaskStatusExpired
	s.closedAt = now
	return true
}

// recomputeStake rebuilds stakeByVerdict from received.
func (s *taskState) recomputeStake() {
	t, f := new(big.Int), new(big.Int)
	for id, att := range s.received {
		stake := s.quorum[s.members[id]].Stake
		if att.Verdict {
			t.Add(t, stake)
		} else {
			f.Add(f, stake)
		}
	}
	s.stakeByVerdict[true] = t
	s.stakeByVerdict[false] = f
}

func (s *taskState) meetsThreshold(stake *big.Int) bool {
	lhs := new(big.Int).Mul(stake, big.NewInt(100))
	rhs := new(big.Int).Mul(s.totalStake, new(big.Int).SetUint64(uint64(s.task.ThresholdPercent)))
	return lhs.Cmp(rhs) >= 0
}

// winningVerdict reports the verdict that reached quorum. ambiguous is set
// when both verdicts cross with exactly equal stake.
func (s *taskState) winningVerdict() (verdict bool, reached bool, ambiguous bool) {
	var crossed []bool
	for _, v := range []bool{true, false} {
		if s.hasVotes(v) && s.meetsThreshold(s.stakeByVerdict[v]) {
			crossed = append(crossed, v)
		}
	}
	switch len(crossed) {
	case 0:
		return false, false, false
	case 1:
		return crossed[0], true, false
	}
	switch s.stakeByVerdict[true].Cmp(s.stakeByVerdict[false]) {
	case 1:
		return true, true, false
	case -1:
		return false, true, false
	default:
		return false, false, true
	}
}

func (s *taskState) hasVotes(verdict bool) bool {
	for _, att := range s.received {
		if att.Verdict == verdict {
			return true
		}
	}
	return false
}

func (s *taskState) snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		TaskIndex:        s.task.Index,
		Status:           s.status,
		ThresholdPercent: s.task.ThresholdPercent,
		QuorumSize:       len(s.quorum),
		Received:         len(s.received),
		TotalStake:       new(big.Int).Set(s.totalStake),
		StakeForTrue:     new(big.Int).Set(s.stakeByVerdict[true]),
		StakeForFalse:    new(big.Int).Set(s.stakeByVerdict[false]),
		ExpiresAt:        s.expiresAt,
	}
	if s.status == types.TaskStatusFinalized {
		v := s.verdict
		snap.Verdict = &v
	}
	return snap
}
