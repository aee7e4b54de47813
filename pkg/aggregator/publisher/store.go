package publisher

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Agentopians/WeAi/internal/database/cache"
)

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementSubmitted SettlementStatus = "submitted"
	SettlementFailed    SettlementStatus = "failed"
)

// SettlementRecord tracks the respondToTask submission of one task.
type SettlementRecord struct {
	TaskIndex uint32           `msgpack:"task_index"`
	Verdict   bool             `msgpack:"verdict"`
	Status    SettlementStatus `msgpack:"status"`
	TxHash    string           `msgpack:"tx_hash,omitempty"`
	Error     string           `msgpack:"error,omitempty"`
	UpdatedAt time.Time        `msgpack:"updated_at"`
}

// SubmittedStore guarantees a task is claimed for settlement at most once.
type SubmittedStore interface {
	// MarkSubmitted claims rec.TaskIndex. It returns false if the task was
	// already claimed.
	MarkSubmitted(ctx context.Context, rec SettlementRecord) (bool, error)
	// RecordOutcome updates the record of a claimed task.
	RecordOutcome(ctx context.Context, rec SettlementRecord) error
	Get(ctx context.Context, taskIndex uint32) (*SettlementRecord, error)
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[uint32]SettlementRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uint32]SettlementRecord)}
}

func (m *MemoryStore) MarkSubmitted(ctx context.Context, rec SettlementRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.TaskIndex]; exists {
		return false, nil
	}
	m.records[rec.TaskIndex] = rec
	return true, nil
}

func (m *MemoryStore) RecordOutcome(ctx context.Context, rec SettlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.TaskIndex]; !exists {
		return fmt.Errorf("[Settlement] task %d was never claimed", rec.TaskIndex)
	}
	m.records[rec.TaskIndex] = rec
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, taskIndex uint32) (*SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[taskIndex]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RedisStore keeps settlement records in redis so a restarted or second
// aggregator does not settle a task twice.
type RedisStore struct {
	client *cache.Client
	ttl    time.Duration
}

// NewRedisStore stores records for ttl, zero keeps them forever.
func NewRedisStore(client *cache.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("[Settlement] redis client is nil")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func settlementKey(taskIndex uint32) string {
	return "settlement:" + strconv.FormatUint(uint64(taskIndex), 10)
}

func (r *RedisStore) MarkSubmitted(ctx context.Context, rec SettlementRecord) (bool, error) {
	return r.client.SetNX(ctx, settlementKey(rec.TaskIndex), rec, r.ttl)
}

func (r *RedisStore) RecordOutcome(ctx context.Context, rec SettlementRecord) error {
	ok, err := r.client.Update(ctx, settlementKey(rec.TaskIndex), rec)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("[Settlement] task %d was never claimed", rec.TaskIndex)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, taskIndex uint32) (*SettlementRecord, error) {
	var rec SettlementRecord
	found, err := r.client.Get(ctx, settlementKey(taskIndex), &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}
