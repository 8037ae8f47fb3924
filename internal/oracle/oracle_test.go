package oracle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter/local"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/evaluator"
	"github.com/phasemirror/dissonance-oracle/internal/l0"
	"github.com/phasemirror/dissonance-oracle/internal/semantic"
)

func TestAnalyze_RejectsInvalidInput(t *testing.T) {
	o, _, _ := newTestOracle(t, evaluator.NewRegistry(), 100)
	_, err := o.Analyze(context.Background(), domain.OracleInput{})
	require.Error(t, err)
}

func TestAnalyze_NoViolationsAllows(t *testing.T) {
	o, _, _ := newTestOracle(t, evaluator.NewRegistry(), 100)
	output, err := o.Analyze(context.Background(), domain.OracleInput{
		Mode:    domain.ModePullRequest,
		Context: domain.OracleInputContext{OrgID: "org-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAllow, output.MachineDecision.Outcome)
	assert.False(t, output.Degraded)
}

func TestAnalyze_RejectsStateFailingL0(t *testing.T) {
	reg := evaluator.NewRegistry()
	o, _, _ := newTestOracle(t, reg, 100)

	_, err := o.Analyze(context.Background(), domain.OracleInput{
		Mode:    domain.ModePullRequest,
		Context: domain.OracleInputContext{OrgID: "org-1"},
		State: &domain.State{
			SchemaVersion:  "v1",
			SchemaHash:     "deadbeef",
			DriftMagnitude: 0.9, // outside the [0, 0.3] L0 bound
			Nonce:          domain.Nonce{Value: strings.Repeat("a", 64), IssuedAt: time.Now().UnixMilli()},
		},
	})
	require.Error(t, err)
	var invariantErr *l0.InvariantViolation
	require.ErrorAs(t, err, &invariantErr)
	assert.Contains(t, invariantErr.FailedChecks, l0.CheckDriftBounds)
}

func TestAnalyze_FailsClosedOnFPAdapterError(t *testing.T) {
	reg := evaluator.NewRegistry()
	reg.Register(evaluator.Rule{ID: "MD-001", Version: "1", Check: func(context.Context, domain.OracleInput) ([]domain.Violation, error) {
		return []domain.Violation{{RuleID: "MD-001", Severity: domain.SeverityHigh, FindingID: "f1", Kind: domain.KindReal}}, nil
	}})

	blockStore, err := local.NewBlockCounter(t.TempDir())
	require.NoError(t, err)

	o := New(
		evaluator.New(reg),
		semantic.NewFPService(failingFPStore{}, nil),
		semantic.NewBlockCounterService(blockStore, 100),
		nil,
	)

	output, err := o.Analyze(context.Background(), domain.OracleInput{
		Mode:    domain.ModePullRequest,
		Context: domain.OracleInputContext{OrgID: "org-1"},
	})
	require.NoError(t, err)
	assert.True(t, output.Degraded)
	require.Len(t, output.Violations, 1)
}

type failingFPStore struct{}

func (failingFPStore) RecordEvent(context.Context, domain.FPEvent) error { return nil }
func (failingFPStore) MarkFalsePositive(context.Context, string, string, string) error {
	return nil
}
func (failingFPStore) GetWindowByCount(context.Context, string, int) (domain.FPWindow, error) {
	return domain.FPWindow{}, nil
}
func (failingFPStore) GetWindowBySince(context.Context, string, time.Time) (domain.FPWindow, error) {
	return domain.FPWindow{}, nil
}
func (failingFPStore) IsFalsePositive(context.Context, string, string) (bool, error) {
	return false, assertError{"fp store unreachable"}
}
