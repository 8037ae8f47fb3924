package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func TestNew_BuildsFullProviderSet(t *testing.T) {
	set, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NotNil(t, set.FPStore)
	assert.NotNil(t, set.BlockCounter)
	assert.NotNil(t, set.ConsentStore)
	assert.NotNil(t, set.SecretStore)
	assert.NotNil(t, set.BaselineStore)
	assert.NotNil(t, set.CalibrationStore)
}

func TestFPStore_RecordEvent_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	store, err := NewFPStore(t.TempDir())
	require.NoError(t, err)

	event := domain.FPEvent{EventID: "evt-1", RuleID: "MD-001", FindingID: "f-1", Timestamp: time.Now()}
	require.NoError(t, store.RecordEvent(ctx, event))

	err = store.RecordEvent(ctx, event)
	require.Error(t, err)
	var dup *adapter.ErrDuplicate
	assert.ErrorAs(t, err, &dup)
}

func TestFPStore_MarkFalsePositive_UpdatesLatestEvent(t *testing.T) {
	ctx := context.Background()
	store, err := NewFPStore(t.TempDir())
	require.NoError(t, err)

	older := domain.FPEvent{EventID: "evt-1", RuleID: "MD-001", FindingID: "f-1", Timestamp: time.Now().Add(-time.Hour)}
	newer := domain.FPEvent{EventID: "evt-2", RuleID: "MD-001", FindingID: "f-1", Timestamp: time.Now()}
	require.NoError(t, store.RecordEvent(ctx, older))
	require.NoError(t, store.RecordEvent(ctx, newer))

	require.NoError(t, store.MarkFalsePositive(ctx, "f-1", "reviewer@example.com", "TICKET-1"))

	isFP, err := store.IsFalsePositive(ctx, "MD-001", "f-1")
	require.NoError(t, err)
	assert.True(t, isFP)
}

func TestFPStore_GetWindowByCount_ComputesStatistics(t *testing.T) {
	ctx := context.Background()
	store, err := NewFPStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordEvent(ctx, domain.FPEvent{
			EventID: "evt-" + string(rune('a'+i)), RuleID: "MD-001", FindingID: "f-" + string(rune('a'+i)),
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.MarkFalsePositive(ctx, "f-a", "reviewer", "T-1"))

	window, err := store.GetWindowByCount(ctx, "MD-001", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, window.Statistics.Total)
	assert.Equal(t, 1, window.Statistics.FalsePositives)
	assert.Equal(t, 2, window.Statistics.Pending)
}

func TestBlockCounter_IncrementAndCircuitBreak(t *testing.T) {
	ctx := context.Background()
	counter, err := NewBlockCounter(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := counter.Increment(ctx, "MD-001", "org-1")
		require.NoError(t, err)
	}

	count, err := counter.GetCount(ctx, "MD-001", "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	broken, err := counter.IsCircuitBroken(ctx, "MD-001", "org-1", 5)
	require.NoError(t, err)
	assert.True(t, broken)

	broken, err = counter.IsCircuitBroken(ctx, "MD-001", "org-2", 5)
	require.NoError(t, err)
	assert.False(t, broken)
}

func TestBlockCounter_ExpiredBucketsAreReclaimedLazily(t *testing.T) {
	ctx := context.Background()
	counter, err := NewBlockCounter(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	counter.clock = func() time.Time { return now }

	_, err = counter.Increment(ctx, "MD-001", "org-1")
	require.NoError(t, err)

	buckets, err := counter.load()
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	// Advance the clock well past the bucket's TTL and touch the store
	// again; the stale bucket should be dropped from disk, not just
	// skipped in memory.
	counter.clock = func() time.Time { return now.Add(3 * time.Hour) }

	_, err = counter.GetCount(ctx, "MD-001", "org-1")
	require.NoError(t, err)

	buckets, err = counter.load()
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestConsentStore_GrantCheckRevoke(t *testing.T) {
	ctx := context.Background()
	store, err := NewConsentStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.GrantConsent(ctx, "org-1", "telemetry", "admin@example.com", nil))

	ok, err := store.CheckResourceConsent(ctx, "org-1", "telemetry")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.RevokeConsent(ctx, "org-1", "telemetry", "admin@example.com"))

	ok, err = store.CheckResourceConsent(ctx, "org-1", "telemetry")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsentStore_ExpiredConsentDoesNotHold(t *testing.T) {
	ctx := context.Background()
	store, err := NewConsentStore(t.TempDir())
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.GrantConsent(ctx, "org-1", "telemetry", "admin", &past))

	ok, err := store.CheckResourceConsent(ctx, "org-1", "telemetry")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecretStore_RotateNonce_AppendsNewVersion(t *testing.T) {
	ctx := context.Background()
	store, err := NewSecretStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.RotateNonce(ctx, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.NoError(t, store.RotateNonce(ctx, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))

	v1, err := store.GetNonce(ctx, "oracle-nonce-v1")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", v1)

	v2, err := store.GetNonce(ctx, "oracle-nonce-v2")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", v2)

	assert.True(t, store.IsReachable(ctx))
}

func TestBaselineStore_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewBaselineStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.PutBaseline(ctx, "schema-v1", []byte(`{"schema":"v1"}`)))

	data, err := store.GetBaseline(ctx, "schema-v1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"schema":"v1"}`), data)

	listings, err := store.ListBaselines(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "schema-v1", listings[0].Key)

	require.NoError(t, store.DeleteBaseline(ctx, "schema-v1"))
	_, err = store.GetBaseline(ctx, "schema-v1")
	require.Error(t, err)
}

func TestCalibrationStore_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewCalibrationStore(t.TempDir())
	require.NoError(t, err)

	result := domain.CalibrationResultExtended{RuleID: "MD-001", ConsensusFPRate: 0.12}
	require.NoError(t, store.StoreCalibrationResult(ctx, result))

	got, err := store.GetCalibrationResult(ctx, "MD-001")
	require.NoError(t, err)
	assert.Equal(t, 0.12, got.ConsensusFPRate)

	all, err := store.GetAllCalibrationResults(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
