package awsadapter

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

type alwaysRetryable struct{}

func (alwaysRetryable) IsRetryable(error) bool { return true }

func TestNonRetryableChecker_SentinelsAreTerminal(t *testing.T) {
	checker := &nonRetryableChecker{fallback: alwaysRetryable{}}

	assert.False(t, checker.IsRetryable(&adapter.ErrNotFound{Kind: "secret", ID: "x"}))
	assert.False(t, checker.IsRetryable(&adapter.ErrDuplicate{EventID: "evt-1"}))
	assert.True(t, checker.IsRetryable(resilience.ErrNonRetryable))
}

func TestNextVersionedName_SkipsExisting(t *testing.T) {
	taken := map[string]bool{"oracle-nonce-v1": true, "oracle-nonce-v2": true}
	name := nextVersionedName(func(n string) bool { return taken[n] })
	assert.Equal(t, "oracle-nonce-v3", name)
}

func TestFPEventItemRoundTrip(t *testing.T) {
	reviewedAt := time.Now().Truncate(time.Millisecond)
	event := domain.FPEvent{
		EventID:           "evt-1",
		RuleID:            "MD-001",
		RuleVersion:       "1.0.0",
		FindingID:         "f-1",
		Outcome:           domain.Outcome("confirmed"),
		IsFalsePositive:   true,
		ReviewedBy:        "reviewer@example.com",
		SuppressionTicket: "TICKET-1",
		ReviewedAt:        &reviewedAt,
		Timestamp:         time.Now().Truncate(time.Millisecond),
		Context: domain.FPEventContext{
			OrgIDHash: "hash-1",
			RepoID:    "repo-1",
			Branch:    "main",
			EventType: "sast",
		},
	}

	item := fpEventToItem(event)
	got := itemToFPEvent(item)

	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, event.RuleID, got.RuleID)
	assert.Equal(t, event.IsFalsePositive, got.IsFalsePositive)
	assert.True(t, event.Timestamp.Equal(got.Timestamp))
	require_NotNil(t, got.ReviewedAt)
	assert.True(t, reviewedAt.Equal(*got.ReviewedAt))
	assert.Equal(t, event.Context, got.Context)
}

func require_NotNil(t *testing.T, v *time.Time) {
	t.Helper()
	if v == nil {
		t.Fatal("expected non-nil reviewedAt")
	}
}

func TestCalibrationItemRoundTrip_IncludesFilterSummary(t *testing.T) {
	result := domain.CalibrationResultExtended{
		RuleID:              "MD-001",
		ConsensusFPRate:     0.42,
		Confidence:          0.9,
		ConfidenceCategory:  domain.ConfidenceHigh,
		TrustedContributors: 7,
		ComputedAt:          time.Now().Truncate(time.Millisecond),
		FilterSummary: domain.FilterSummary{
			OutliersFiltered:      2,
			LowReputationFiltered: 1,
			FilterRate:            0.3,
			ZScoreThreshold:       3.0,
			ByzantinePercentile:   0.2,
		},
	}

	item := calibrationToItem(result)
	got := itemToCalibration(item)

	assert.Equal(t, result.RuleID, got.RuleID)
	assert.Equal(t, result.ConsensusFPRate, got.ConsensusFPRate)
	assert.Equal(t, result.TrustedContributors, got.TrustedContributors)
	assert.Equal(t, result.FilterSummary, got.FilterSummary)
}

func TestStrAttr_MissingKeyReturnsEmpty(t *testing.T) {
	item := map[string]types.AttributeValue{}
	assert.Equal(t, "", strAttr(item, "missing"))
	assert.False(t, boolAttr(item, "missing"))
}
