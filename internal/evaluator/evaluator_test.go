package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func TestEvaluateAll_AllPass(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Rule{ID: "MD-001", Version: "1", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
		return nil, nil
	}})
	reg.Register(Rule{ID: "MD-002", Version: "1", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
		return []domain.Violation{{RuleID: "MD-002", Severity: domain.SeverityLow, Kind: domain.KindReal}}, nil
	}})

	eval := New(reg)
	result := eval.EvaluateAll(context.Background(), domain.OracleInput{})

	assert.Equal(t, 2, result.RulesEvaluated)
	assert.Equal(t, 0, result.RulesErrored)
	assert.Len(t, result.Violations, 1)
}

func TestEvaluateAll_IsolatesRuleError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Rule{ID: "MD-001", Version: "1", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
		return nil, errors.New("boom")
	}})
	reg.Register(Rule{ID: "MD-002", Version: "1", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
		return nil, nil
	}})

	eval := New(reg)
	result := eval.EvaluateAll(context.Background(), domain.OracleInput{})

	require.Equal(t, 1, result.RulesErrored)
	require.Equal(t, 1, result.RulesEvaluated)
	require.Len(t, result.Errors, 1)
	require.Len(t, result.Violations, 1)
	assert.True(t, result.Violations[0].IsEvaluationError())
	assert.Equal(t, domain.SeverityCritical, result.Violations[0].Severity)
}

func TestEvaluateAll_IsolatesPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Rule{ID: "MD-004", Version: "2", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
		panic("regex timeout")
	}})

	eval := New(reg)
	result := eval.EvaluateAll(context.Background(), domain.OracleInput{})

	require.Equal(t, 1, result.RulesErrored)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "evaluate", result.Violations[0].Context["phase"])
}

func TestEvaluateAll_EnforcesPerRuleTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Rule{ID: "MD-005", Version: "1", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	eval := New(reg, WithRuleTimeout(10*time.Millisecond))
	result := eval.EvaluateAll(context.Background(), domain.OracleInput{})

	require.Equal(t, 1, result.RulesErrored)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.PhaseEvaluate, result.Errors[0].Phase)
}

func TestEvaluateAll_AccountingInvariant(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"MD-001", "MD-002", "MD-003"} {
		id := id
		reg.Register(Rule{ID: id, Version: "1", Check: func(ctx context.Context, in domain.OracleInput) ([]domain.Violation, error) {
			if id == "MD-002" {
				return nil, errors.New("fail")
			}
			return nil, nil
		}})
	}

	eval := New(reg)
	result := eval.EvaluateAll(context.Background(), domain.OracleInput{})

	assert.Equal(t, reg.Len(), result.RulesEvaluated+result.RulesErrored)
}

func TestRegistry_ReRegisterReplacesRule(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Rule{ID: "MD-001", Version: "1"})
	reg.Register(Rule{ID: "MD-001", Version: "2"})

	require.Equal(t, 1, reg.Len())
	assert.Equal(t, "2", reg.Rules()[0].Version)
}
