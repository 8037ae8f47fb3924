package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func TestDecide_EvaluationErrorAlwaysBlocks(t *testing.T) {
	input := domain.DecisionInput{
		Violations: []domain.Violation{
			{Kind: domain.KindEvaluationError, Severity: domain.SeverityCritical},
		},
		CircuitBreakerTripped: true, // even a tripped breaker cannot override rule 1
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeBlock, decision.Outcome)
}

func TestDecide_DryRunAlwaysAllowsButReportsHypothetical(t *testing.T) {
	input := domain.DecisionInput{
		DryRun: true,
		Violations: []domain.Violation{
			{Kind: domain.KindReal, Severity: domain.SeverityCritical},
		},
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeAllow, decision.Outcome)
	assert.Contains(t, decision.Reasons[0], "would have resulted in block")
}

func TestDecide_CriticalBlocksWithoutCircuitBreaker(t *testing.T) {
	input := domain.DecisionInput{
		Violations: []domain.Violation{{Kind: domain.KindReal, Severity: domain.SeverityCritical}},
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeBlock, decision.Outcome)
}

func TestDecide_CircuitBreakerDegradesBlockToWarn(t *testing.T) {
	input := domain.DecisionInput{
		Violations:            []domain.Violation{{Kind: domain.KindReal, Severity: domain.SeverityCritical}},
		CircuitBreakerTripped: true,
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeWarn, decision.Outcome)
	assert.Contains(t, decision.Reasons[0], "circuit breaker tripped")
}

func TestDecide_StrictModeBlocksOnHighMedium(t *testing.T) {
	input := domain.DecisionInput{
		Strict:     true,
		Violations: []domain.Violation{{Kind: domain.KindReal, Severity: domain.SeverityHigh}},
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeBlock, decision.Outcome)
}

func TestDecide_NonStrictWarnsOnHighMedium(t *testing.T) {
	input := domain.DecisionInput{
		Violations: []domain.Violation{{Kind: domain.KindReal, Severity: domain.SeverityMedium}},
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeWarn, decision.Outcome)
}

func TestDecide_NoViolationsAllows(t *testing.T) {
	decision := Decide(domain.DecisionInput{}, time.Now())
	assert.Equal(t, domain.OutcomeAllow, decision.Outcome)
}

func TestDecide_LowSeverityOnlyAllows(t *testing.T) {
	input := domain.DecisionInput{
		Violations: []domain.Violation{{Kind: domain.KindReal, Severity: domain.SeverityLow}},
	}
	decision := Decide(input, time.Now())
	assert.Equal(t, domain.OutcomeAllow, decision.Outcome)
}
