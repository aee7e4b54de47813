package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Agentopians/WeAi/internal/database/cache"
)

func TestRedisStore(t *testing.T) {
	conn := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 9})
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	require.NoError(t, conn.FlushDB(ctx).Err())

	client, err := cache.New(conn, "settlement-test")
	require.NoError(t, err)
	store, err := NewRedisStore(client, time.Minute)
	require.NoError(t, err)

	require.Error(t, store.RecordOutcome(ctx, SettlementRecord{TaskIndex: 3}))

	ok, err := store.MarkSubmitted(ctx, SettlementRecord{TaskIndex: 3, Verdict: true, Status: SettlementPending, UpdatedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.MarkSubmitted(ctx, SettlementRecord{TaskIndex: 3, Status: SettlementPending})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.RecordOutcome(ctx, SettlementRecord{TaskIndex: 3, Verdict: true, Status: SettlementSubmitted, TxHash: "0xabc"}))

	rec, err := store.Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, SettlementSubmitted, rec.Status)
	require.Equal(t, "0xabc", rec.TxHash)
	require.True(t, rec.Verdict)

	ttl, err := conn.TTL(ctx, "settlement-test#settlement:3#").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	missing, err := store.Get(ctx, 4)
	require.NoError(t, err)
	require.Nil(t, missing)
}
