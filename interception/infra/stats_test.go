package infra

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"method-dispatch/interception/domain"
)

func TestMemoryStatsStore(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "send:a", Site: "send", Outcome: domain.OutcomeAllowed}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "send:a", Site: "send", Outcome: domain.OutcomeDenied}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "job", Site: "job", Outcome: domain.OutcomeSubmitted}))

	assert.Equal(t, Counters{
		domain.OutcomeAllowed:   1,
		domain.OutcomeDenied:    1,
		domain.OutcomeSubmitted: 1,
	}, s.Total())
	assert.EqualValues(t, 1, s.BySite()["send"][domain.OutcomeDenied])
	assert.Len(t, s.ByKey(), 2)

	// cópias: mexer no retorno não altera o store
	s.Total()[domain.OutcomeAllowed] = 99
	assert.EqualValues(t, 1, s.Total()[domain.OutcomeAllowed])
}

func TestMemoryStatsStore_KeysOffByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "k", Outcome: domain.OutcomeAllowed}))
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_NilClientIsNoop(t *testing.T) {
	s := NewRedisStatsStore(nil)
	assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{Outcome: domain.OutcomeAllowed}))
}

// Requer um Redis real: REDIS_ADDR=localhost:6379 go test ./...
func TestRedisStatsStore_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	prefix := "dispatch:test:" + time.Now().Format("150405.000000")
	s := NewRedisStatsStore(rdb, WithStatsPrefix(prefix), WithStatsTTL(time.Minute), WithStatsTrackKeys(true))
	defer rdb.Del(ctx, prefix+":total", prefix+":site")

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "k", Site: "send", Outcome: domain.OutcomeAllowed}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "k", Site: "send", Outcome: domain.OutcomeAllowed}))

	total, err := s.Total(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total[domain.OutcomeAllowed])

	n, err := rdb.HGet(ctx, prefix+":site", "send:allowed").Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
