// Package policy merges a rule evaluation's violations into a single
// MachineDecision, applying the Oracle's ordered, first-match-wins
// outcome rules.
//
// Grounded on other_examples/32e2bb90_Mindburn-Labs-helm__core-pkg-
// compliance-enforcement-engine.go's PolicyResult enum and
// first-match aggregation, and on the teacher's
// internal/core/services/filter_engine.go numbered-rule-reasons idiom
// (each rule in the chain appends its own human-readable reason before
// falling through).
package policy

import (
	"fmt"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

type tally struct {
	evaluationErrors int
	critical         int
	high             int
	medium           int
	low              int
}

func tallyViolations(violations []domain.Violation) tally {
	var t tally
	for _, v := range violations {
		if v.IsEvaluationError() {
			t.evaluationErrors++
			continue
		}
		switch v.Severity {
		case domain.SeverityCritical:
			t.critical++
		case domain.SeverityHigh:
			t.high++
		case domain.SeverityMedium:
			t.medium++
		case domain.SeverityLow:
			t.low++
		}
	}
	return t
}

// Decide merges input into a MachineDecision per spec.md §4.F's
// ordered rules. now stamps DecisionMetadata.Timestamp.
func Decide(input domain.DecisionInput, now time.Time) domain.MachineDecision {
	t := tallyViolations(input.Violations)
	outcome, reasons := decideOutcome(input, t)

	return domain.MachineDecision{
		Outcome: outcome,
		Reasons: reasons,
		Metadata: domain.DecisionMetadata{
			Timestamp:      now,
			Mode:           input.Mode,
			RulesEvaluated: input.RulesEvaluated,
		},
	}
}

func decideOutcome(input domain.DecisionInput, t tally) (domain.Outcome, []string) {
	// Rule 1: any rule evaluation error blocks, non-overridable.
	if t.evaluationErrors > 0 {
		if t.critical > 0 {
			return domain.OutcomeBlock, []string{fmt.Sprintf(
				"%d critical violation(s) and %d rule evaluation error(s)", t.critical, t.evaluationErrors)}
		}
		return domain.OutcomeBlock, []string{fmt.Sprintf("%d rule evaluation error(s)", t.evaluationErrors)}
	}

	// Rule 2: dry run always allows, but reports the outcome it would
	// have produced.
	if input.DryRun {
		hypotheticalInput := input
		hypotheticalInput.DryRun = false
		would, whyWould := decideOutcome(hypotheticalInput, t)
		reasons := append([]string{fmt.Sprintf("dry run: would have resulted in %s", would)}, whyWould...)
		return domain.OutcomeAllow, reasons
	}

	// Rule 3: critical violations block unless the circuit breaker has
	// already tripped for this (rule, org).
	if t.critical > 0 && !input.CircuitBreakerTripped {
		return domain.OutcomeBlock, []string{fmt.Sprintf("%d critical violation(s)", t.critical)}
	}

	// Rule 4: a tripped circuit breaker degrades what would otherwise
	// be a block down to a warn.
	if input.CircuitBreakerTripped {
		reasons := []string{"circuit breaker tripped (degraded)"}
		if t.critical > 0 {
			reasons = append(reasons, fmt.Sprintf("%d critical violation(s) would have blocked", t.critical))
		}
		return domain.OutcomeWarn, reasons
	}

	// Rule 5: any high/medium severity violation is a block in strict
	// mode, a warn otherwise.
	if t.high > 0 || t.medium > 0 {
		reason := fmt.Sprintf("%d high / %d medium violation(s)", t.high, t.medium)
		if input.Strict {
			return domain.OutcomeBlock, []string{"strict mode: " + reason}
		}
		return domain.OutcomeWarn, []string{reason}
	}

	// Rule 6: nothing above matched (no violations, or only low severity).
	if t.low > 0 {
		return domain.OutcomeAllow, []string{fmt.Sprintf("%d low severity violation(s), informational only", t.low)}
	}
	return domain.OutcomeAllow, []string{"no violations"}
}
