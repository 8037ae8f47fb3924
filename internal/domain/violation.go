package domain

import (
	"fmt"
	"time"
)

// Severity is a Violation's blast-radius classification, consulted by the
// decision layer's outcome rules.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Kind distinguishes a violation genuinely raised by a rule from one
// synthesized when a rule's evaluation itself failed. The decision layer
// branches on Kind directly rather than on the context map's
// "isEvaluationError" flag, which exists only for wire-shape
// compatibility with spec.md's JSON contract.
type Kind string

const (
	KindReal            Kind = "real"
	KindEvaluationError Kind = "evaluation_error"
)

// Violation is one finding produced by a rule (or synthesized from a
// failed rule evaluation).
type Violation struct {
	RuleID          string         `json:"ruleId"`
	Severity        Severity       `json:"severity"`
	Message         string         `json:"message"`
	Context         map[string]any `json:"context"`
	Kind            Kind           `json:"-"`
	FindingID       string         `json:"findingId,omitempty"`
	EventTimestamp  time.Time      `json:"eventTimestamp"`
}

// IsEvaluationError reports whether Kind is KindEvaluationError. Kind is
// not serialized, so on a violation decoded from JSON this is false and
// only context.isEvaluationError carries the flag.
func (v Violation) IsEvaluationError() bool {
	return v.Kind == KindEvaluationError
}

// EvaluationPhase names where in a rule's lifecycle an error occurred.
type EvaluationPhase string

const (
	PhaseInit     EvaluationPhase = "init"
	PhaseEvaluate EvaluationPhase = "evaluate"
	PhaseEvidence EvaluationPhase = "evidence"
	PhasePost     EvaluationPhase = "post"
)

// RuleEvaluationError wraps a rule's panic or returned error with enough
// context to synthesize a critical Violation and to report it
// separately from real findings.
type RuleEvaluationError struct {
	RuleID      string
	RuleVersion string
	Phase       EvaluationPhase
	Cause       error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s (v%s) failed in phase %s: %v", e.RuleID, e.RuleVersion, e.Phase, e.Cause)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Cause
}

// ToViolation builds the single synthetic critical violation a thrown
// rule error must produce, per spec.md §4.E.
func (e *RuleEvaluationError) ToViolation(now time.Time) Violation {
	return Violation{
		RuleID:   e.RuleID,
		Severity: SeverityCritical,
		Message:  e.Error(),
		Context: map[string]any{
			"isEvaluationError": true,
			"phase":             string(e.Phase),
			"ruleVersion":       e.RuleVersion,
		},
		Kind:           KindEvaluationError,
		EventTimestamp: now,
	}
}
