package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter/local"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func TestWindowCache_LocalHitAndMiss(t *testing.T) {
	cache, err := NewWindowCache(10, nil, time.Minute, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "MD-001", "count=10")
	assert.False(t, ok)

	window := domain.FPWindow{RuleID: "MD-001", Statistics: domain.FPWindowStatistics{Total: 3}}
	cache.Set(ctx, "MD-001", "count=10", window)

	got, ok := cache.Get(ctx, "MD-001", "count=10")
	require.True(t, ok)
	assert.Equal(t, window, got)
}

func TestWindowCache_InvalidateBumpsGeneration(t *testing.T) {
	cache, err := NewWindowCache(10, nil, time.Minute, nil)
	require.NoError(t, err)
	ctx := context.Background()

	window := domain.FPWindow{RuleID: "MD-001", Statistics: domain.FPWindowStatistics{Total: 1}}
	cache.Set(ctx, "MD-001", "count=10", window)

	cache.Invalidate("MD-001")

	_, ok := cache.Get(ctx, "MD-001", "count=10")
	assert.False(t, ok, "invalidation should bump the generation so the old key no longer resolves")
}

func TestWindowCache_RedisTierReadThrough(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, err := NewWindowCache(10, client, time.Minute, nil)
	require.NoError(t, err)
	ctx := context.Background()

	window := domain.FPWindow{RuleID: "MD-002", Statistics: domain.FPWindowStatistics{Total: 5}}
	cache.Set(ctx, "MD-002", "since=1", window)

	// A fresh cache with an empty local tier but the same Redis backing
	// should still find the entry.
	other, err := NewWindowCache(10, client, time.Minute, nil)
	require.NoError(t, err)

	got, ok := other.Get(ctx, "MD-002", "since=1")
	require.True(t, ok)
	assert.Equal(t, window, got)
}

func TestFPService_RecordEvent_InvalidatesWindowCache(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)

	cache, err := NewWindowCache(10, nil, time.Minute, nil)
	require.NoError(t, err)
	svc := NewFPService(store, nil, WithWindowCache(cache))

	cache.Set(ctx, "MD-001", "count=10", domain.FPWindow{RuleID: "MD-001"})

	_, err = svc.RecordEvent(ctx, domain.FPEvent{EventID: "e1", RuleID: "MD-001", FindingID: "f1", Timestamp: time.Now()})
	require.NoError(t, err)

	_, ok := cache.Get(ctx, "MD-001", "count=10")
	assert.False(t, ok, "a newly recorded event should invalidate that rule's cached windows")
}
