// Package rules registers the governance rule set's checker functions
// against the evaluator's registry. The rule bodies themselves are out
// of scope for this system's core (spec.md's CORE covers the evaluator
// contract, not the individual MD-001..005/MD-100..102 policies); what's
// here is the minimal set of checks needed to exercise that contract
// end to end, not a claim of policy completeness.
package rules

import (
	"context"
	"fmt"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/evaluator"
)

// RegisterDefaults wires the baseline governance rules into reg.
func RegisterDefaults(reg *evaluator.Registry) {
	reg.Register(evaluator.Rule{ID: "MD-001", Version: "1", Check: checkSchemaVersionPinned})
	reg.Register(evaluator.Rule{ID: "MD-002", Version: "1", Check: checkDriftWithinWarningBand})
	reg.Register(evaluator.Rule{ID: "MD-003", Version: "1", Check: checkPermissionEscalation})
	reg.Register(evaluator.Rule{ID: "MD-004", Version: "1", Check: checkWitnessScorePresent})
	reg.Register(evaluator.Rule{ID: "MD-005", Version: "1", Check: checkBranchNaming})
	reg.Register(evaluator.Rule{ID: "MD-100", Version: "1", Check: checkRepositoryAllowlisted})
	reg.Register(evaluator.Rule{ID: "MD-101", Version: "1", Check: checkAuthorPresent})
	reg.Register(evaluator.Rule{ID: "MD-102", Version: "1", Check: checkMergeGroupBatchSize})
}

func checkSchemaVersionPinned(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.State == nil || input.State.SchemaVersion != "" {
		return nil, nil
	}
	return []domain.Violation{{
		RuleID:   "MD-001",
		Severity: domain.SeverityHigh,
		Message:  "state is missing a schemaVersion",
		Kind:     domain.KindReal,
	}}, nil
}

func checkDriftWithinWarningBand(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.State == nil || input.State.DriftMagnitude <= 0.2 {
		return nil, nil
	}
	return []domain.Violation{{
		RuleID:   "MD-002",
		Severity: domain.SeverityMedium,
		Message:  fmt.Sprintf("drift magnitude %.3f exceeds the 0.2 warning band", input.State.DriftMagnitude),
		Kind:     domain.KindReal,
	}}, nil
}

func checkPermissionEscalation(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	const writeAllBit = 1 << 15
	if input.State == nil || input.State.PermissionBits&writeAllBit == 0 {
		return nil, nil
	}
	return []domain.Violation{{
		RuleID:   "MD-003",
		Severity: domain.SeverityCritical,
		Message:  "state requests the write-all permission bit",
		Kind:     domain.KindReal,
	}}, nil
}

func checkWitnessScorePresent(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.Mode != domain.ModeMergeGroup {
		return nil, nil
	}
	if input.State != nil && input.State.ContractionWitnessScore != nil {
		return nil, nil
	}
	return []domain.Violation{{
		RuleID:   "MD-004",
		Severity: domain.SeverityHigh,
		Message:  "merge-group transition is missing a contraction witness score",
		Kind:     domain.KindReal,
	}}, nil
}

func checkBranchNaming(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.Context.Branch == "" || input.Context.Branch != "main" {
		return nil, nil
	}
	if input.Mode == domain.ModePullRequest {
		return []domain.Violation{{
			RuleID:   "MD-005",
			Severity: domain.SeverityLow,
			Message:  "pull request targets main directly",
			Kind:     domain.KindReal,
		}}, nil
	}
	return nil, nil
}

func checkRepositoryAllowlisted(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.Context.RepositoryName != "" {
		return nil, nil
	}
	return []domain.Violation{{
		RuleID:   "MD-100",
		Severity: domain.SeverityMedium,
		Message:  "change event is missing a repository name",
		Kind:     domain.KindReal,
	}}, nil
}

func checkAuthorPresent(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.Context.Author != "" {
		return nil, nil
	}
	return []domain.Violation{{
		RuleID:   "MD-101",
		Severity: domain.SeverityLow,
		Message:  "change event is missing an author",
		Kind:     domain.KindReal,
	}}, nil
}

func checkMergeGroupBatchSize(_ context.Context, input domain.OracleInput) ([]domain.Violation, error) {
	if input.Mode != domain.ModeMergeGroup {
		return nil, nil
	}
	if input.Context.PRNumber <= 0 {
		return []domain.Violation{{
			RuleID:   "MD-102",
			Severity: domain.SeverityMedium,
			Message:  "merge-group event is missing a pull request reference",
			Kind:     domain.KindReal,
		}}, nil
	}
	return nil, nil
}
