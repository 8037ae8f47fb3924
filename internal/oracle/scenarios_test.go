package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter/local"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/evaluator"
	"github.com/phasemirror/dissonance-oracle/internal/semantic"
)

func newTestOracle(t *testing.T, reg *evaluator.Registry, blockThreshold int64) (*Oracle, *local.FPStore, *local.BlockCounter) {
	t.Helper()
	fpStore, err := local.NewFPStore(t.TempDir())
	require.NoError(t, err)
	blockStore, err := local.NewBlockCounter(t.TempDir())
	require.NoError(t, err)

	eval := evaluator.New(reg)
	fpService := semantic.NewFPService(fpStore, nil)
	blockService := semantic.NewBlockCounterService(blockStore, blockThreshold)

	return New(eval, fpService, blockService, nil), fpStore, blockStore
}

// Scenario 1: FP filtering drops a confirmed false positive, leaving
// the critical violation to drive a block outcome.
func TestScenario_FPFilteringDropsConfirmedFalsePositive(t *testing.T) {
	ctx := context.Background()
	reg := evaluator.NewRegistry()
	reg.Register(evaluator.Rule{ID: "MD-001", Version: "1", Check: func(context.Context, domain.OracleInput) ([]domain.Violation, error) {
		return []domain.Violation{{RuleID: "MD-001", Severity: domain.SeverityHigh, FindingID: "F1", Kind: domain.KindReal}}, nil
	}})
	reg.Register(evaluator.Rule{ID: "MD-002", Version: "1", Check: func(context.Context, domain.OracleInput) ([]domain.Violation, error) {
		return []domain.Violation{{RuleID: "MD-002", Severity: domain.SeverityCritical, Kind: domain.KindReal}}, nil
	}})

	o, fpStore, _ := newTestOracle(t, reg, 100)
	require.NoError(t, fpStore.RecordEvent(ctx, domain.FPEvent{
		EventID: "evt-1", RuleID: "MD-001", FindingID: "F1", IsFalsePositive: true,
		ReviewedAt: timePtr(time.Now()), Timestamp: time.Now(),
	}))

	output, err := o.Analyze(ctx, domain.OracleInput{Mode: domain.ModePullRequest, Context: domain.OracleInputContext{OrgID: "org-1"}})
	require.NoError(t, err)

	require.Len(t, output.Violations, 1)
	assert.Equal(t, "MD-002", output.Violations[0].RuleID)
	assert.Equal(t, domain.OutcomeBlock, output.MachineDecision.Outcome)
}

// Scenario 2: a tripped circuit breaker degrades what would otherwise
// be a block into a warn.
func TestScenario_CircuitBreakerDegradesBlockToWarn(t *testing.T) {
	ctx := context.Background()
	reg := evaluator.NewRegistry()
	reg.Register(evaluator.Rule{ID: "MD-003", Version: "1", Check: func(context.Context, domain.OracleInput) ([]domain.Violation, error) {
		return []domain.Violation{{RuleID: "MD-003", Severity: domain.SeverityCritical, Kind: domain.KindReal}}, nil
	}})

	o, _, blockStore := newTestOracle(t, reg, 100)
	for i := 0; i < 101; i++ {
		_, err := blockStore.Increment(ctx, "MD-003", "org-1")
		require.NoError(t, err)
	}

	output, err := o.Analyze(ctx, domain.OracleInput{Mode: domain.ModePullRequest, Context: domain.OracleInputContext{OrgID: "org-1"}})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeWarn, output.MachineDecision.Outcome)
	assert.Contains(t, output.MachineDecision.Reasons[0], "circuit breaker tripped")
}

// Scenario 3: a rule that returns an error still lets every other rule
// run, and the synthesized evaluation-error violation forces a block.
func TestScenario_RuleErrorIsFatalButIsolated(t *testing.T) {
	ctx := context.Background()
	reg := evaluator.NewRegistry()
	reg.Register(evaluator.Rule{ID: "MD-004", Version: "1", Check: func(context.Context, domain.OracleInput) ([]domain.Violation, error) {
		return nil, assertError{"regex timeout"}
	}})
	ranOther := false
	reg.Register(evaluator.Rule{ID: "MD-005", Version: "1", Check: func(context.Context, domain.OracleInput) ([]domain.Violation, error) {
		ranOther = true
		return nil, nil
	}})

	o, _, _ := newTestOracle(t, reg, 100)
	output, err := o.Analyze(ctx, domain.OracleInput{Mode: domain.ModePullRequest, Context: domain.OracleInputContext{OrgID: "org-1"}})
	require.NoError(t, err)

	require.True(t, ranOther)
	require.Len(t, output.Violations, 1)
	assert.Equal(t, "MD-004", output.Violations[0].RuleID)
	assert.Equal(t, domain.SeverityCritical, output.Violations[0].Severity)
	assert.True(t, output.Violations[0].IsEvaluationError())
	assert.Equal(t, domain.OutcomeBlock, output.MachineDecision.Outcome)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func timePtr(t time.Time) *time.Time { return &t }
