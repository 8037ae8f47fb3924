package calibration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter/local"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

type fakeReputationEngine struct {
	mu      sync.Mutex
	weights map[string]domain.ContributorWeight
	updates map[string]float64
}

func newFakeReputationEngine() *fakeReputationEngine {
	return &fakeReputationEngine{weights: map[string]domain.ContributorWeight{}, updates: map[string]float64{}}
}

func (f *fakeReputationEngine) CalculateContributionWeight(_ context.Context, orgIDHash string) (domain.ContributorWeight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.weights[orgIDHash]
	if !ok {
		return domain.ContributorWeight{OrgIDHash: orgIDHash, Weight: 1, ReputationScore: 1}, nil
	}
	return w, nil
}

func (f *fakeReputationEngine) UpdateConsistencyScore(_ context.Context, orgIDHash string, delta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[orgIDHash] = delta
	return nil
}

func seedEvents(t *testing.T, store *local.FPStore, ruleID string, orgCount, eventsPerOrg int, fpRate float64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	for org := 0; org < orgCount; org++ {
		orgHash := fmt.Sprintf("org-%d", org)
		for i := 0; i < eventsPerOrg; i++ {
			isFP := float64(i) < fpRate*float64(eventsPerOrg)
			reviewedAt := now
			require.NoError(t, store.RecordEvent(ctx, domain.FPEvent{
				EventID:         fmt.Sprintf("%s-%d-%d", orgHash, 0, i),
				RuleID:          ruleID,
				FindingID:       fmt.Sprintf("%s-finding-%d", orgHash, i),
				IsFalsePositive: isFP,
				ReviewedAt:      &reviewedAt,
				Timestamp:       now,
				Context:         domain.FPEventContext{OrgIDHash: orgHash},
			}))
		}
	}
}

func TestAggregateFPsByRule_InsufficientKAnonymity(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	calStore, err := local.NewCalibrationStore(t.TempDir())
	require.NoError(t, err)

	seedEvents(t, store, "MD-001", 3, 5, 0.2)

	engine := New(store, calStore, newFakeReputationEngine(), nil, DefaultConfig(), nil)
	_, err = engine.AggregateFPsByRule(ctx, "MD-001")
	require.Error(t, err)
	var kErr *ErrInsufficientKAnonymity
	require.ErrorAs(t, err, &kErr)
	assert.Equal(t, 3, kErr.Distinct)
}

func TestAggregateFPsByRule_ComputesConsensusAboveKAnonymity(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	calStore, err := local.NewCalibrationStore(t.TempDir())
	require.NoError(t, err)

	seedEvents(t, store, "MD-001", 12, 10, 0.2)

	engine := New(store, calStore, newFakeReputationEngine(), nil, DefaultConfig(), nil)
	result, err := engine.AggregateFPsByRule(ctx, "MD-001")
	require.NoError(t, err)

	assert.InDelta(t, 0.2, result.ConsensusFPRate, 0.01)
	assert.Equal(t, 12, result.TrustedContributors)
	assert.Equal(t, domain.ConfidenceHigh, result.ConfidenceCategory)

	stored, err := calStore.GetCalibrationResult(ctx, "MD-001")
	require.NoError(t, err)
	assert.Equal(t, result.RuleID, stored.RuleID)
}

func TestAggregateFPsByRule_FiltersByzantineOutlier(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	calStore, err := local.NewCalibrationStore(t.TempDir())
	require.NoError(t, err)

	seedEvents(t, store, "MD-001", 11, 20, 0.1)

	fakeRep := newFakeReputationEngine()
	// Add one additional org with a wildly different FP rate (every event a false positive).
	require.NoError(t, store.RecordEvent(ctx, domain.FPEvent{
		EventID: "outlier-1", RuleID: "MD-001", FindingID: "outlier-finding-1",
		IsFalsePositive: true, ReviewedAt: timePtr(time.Now()), Timestamp: time.Now(),
		Context: domain.FPEventContext{OrgIDHash: "outlier-org"},
	}))
	for i := 0; i < 19; i++ {
		require.NoError(t, store.RecordEvent(ctx, domain.FPEvent{
			EventID: fmt.Sprintf("outlier-%d", i+2), RuleID: "MD-001", FindingID: fmt.Sprintf("outlier-finding-%d", i+2),
			IsFalsePositive: true, ReviewedAt: timePtr(time.Now()), Timestamp: time.Now(),
			Context: domain.FPEventContext{OrgIDHash: "outlier-org"},
		}))
	}

	engine := New(store, calStore, fakeRep, nil, DefaultConfig(), nil)
	result, err := engine.AggregateFPsByRule(ctx, "MD-001")
	require.NoError(t, err)

	assert.Greater(t, result.FilterSummary.OutliersFiltered, 0)
	assert.Less(t, result.TrustedContributors, 12)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestConsistencyDelta_RewardsAgreementPenalizesDivergence(t *testing.T) {
	assert.Equal(t, 0.05, consistencyDelta(0.0))
	assert.Equal(t, -0.10, consistencyDelta(0.5))
	assert.Equal(t, 0.0, consistencyDelta(0.15))
}

func TestConfidenceCategory_InsufficientBelowThreeContributors(t *testing.T) {
	assert.Equal(t, domain.ConfidenceInsufficient, confidenceCategory(2, 0.9))
	assert.Equal(t, domain.ConfidenceHigh, confidenceCategory(5, 0.9))
	assert.Equal(t, domain.ConfidenceLow, confidenceCategory(5, 0.1))
}
