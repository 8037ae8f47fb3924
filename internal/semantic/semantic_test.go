package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter/local"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func TestFPService_RecordEvent_ClassifiesCreatedAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	svc := NewFPService(store, nil)

	event := domain.FPEvent{EventID: "evt-1", RuleID: "MD-001", FindingID: "f-1", Timestamp: time.Now()}

	result, err := svc.RecordEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, RecordActionCreated, result.Action)

	result, err = svc.RecordEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, RecordActionDuplicate, result.Action)
}

func TestFPService_IsFalsePositive_ReturnsFalseWhenUnknown(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	svc := NewFPService(store, nil)

	isFP, err := svc.IsFalsePositive(ctx, "MD-001", "unknown-finding")
	require.NoError(t, err)
	assert.False(t, isFP)
}

func TestFPService_GetWindow_ByCountAndSince(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	svc := NewFPService(store, nil)

	now := time.Now()
	require.NoError(t, mustRecord(svc, ctx, domain.FPEvent{EventID: "e1", RuleID: "MD-001", FindingID: "f1", Timestamp: now.Add(-time.Hour)}))
	require.NoError(t, mustRecord(svc, ctx, domain.FPEvent{EventID: "e2", RuleID: "MD-001", FindingID: "f2", Timestamp: now}))

	byCount, err := svc.GetWindow(ctx, "MD-001", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, byCount.Statistics.Total)

	since := now.Add(-time.Minute)
	bySince, err := svc.GetWindow(ctx, "MD-001", 0, &since)
	require.NoError(t, err)
	assert.Equal(t, 1, bySince.Statistics.Total)
}

func mustRecord(svc *FPService, ctx context.Context, e domain.FPEvent) error {
	_, err := svc.RecordEvent(ctx, e)
	return err
}

func TestBlockCounterService_TripsAtThreshold(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewBlockCounter(t.TempDir())
	require.NoError(t, err)
	svc := NewBlockCounterService(store, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordBlock(ctx, "MD-001", "org-1"))
	}

	tripped, err := svc.IsTripped(ctx, "MD-001", "org-1")
	require.NoError(t, err)
	assert.True(t, tripped)
}

func TestConsentService_HoldsAll(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewConsentStore(t.TempDir())
	require.NoError(t, err)
	svc := NewConsentService(store)

	require.NoError(t, store.GrantConsent(ctx, "org-1", "telemetry", "admin", nil))

	holdsAll, err := svc.HoldsAll(ctx, "org-1", []string{"telemetry"})
	require.NoError(t, err)
	assert.True(t, holdsAll)

	holdsAll, err = svc.HoldsAll(ctx, "org-1", []string{"telemetry", "unknown-feature"})
	require.NoError(t, err)
	assert.False(t, holdsAll)
}
