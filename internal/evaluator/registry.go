// Package evaluator runs the registered rule checkers over an
// OracleInput with isolated per-rule failure handling, bounded
// concurrency, and per-rule timeouts.
//
// Grounded on internal/core/processing/async_processor.go's bounded
// worker-pool shape (workers + bounded queue + graceful join), adapted
// from a webhook job queue to a parallel fan-out-then-join over a
// fixed rule registry, and on other_examples/32e2bb90_Mindburn-Labs-
// helm__core-pkg-compliance-enforcement-engine.go's isolate-each-
// check/aggregate-into-one-result shape.
package evaluator

import (
	"context"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// CheckFunc evaluates one rule against input, returning any violations
// it finds. It must be pure over input: no hidden state, no side
// effects beyond what it returns.
type CheckFunc func(ctx context.Context, input domain.OracleInput) ([]domain.Violation, error)

// Rule is one registered check.
type Rule struct {
	ID      string
	Version string
	Check   CheckFunc
}

// Registry holds rules in registration order; evaluation iterates that
// order even though the worker pool runs them concurrently, so
// evaluatedRules+erroredRules accounting and any ordering-sensitive
// logging stay deterministic.
type Registry struct {
	rules []Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a rule. Registering the same ID twice is a
// programmer error; the second registration replaces the first rather
// than evaluating a rule twice.
func (r *Registry) Register(rule Rule) {
	for i, existing := range r.rules {
		if existing.ID == rule.ID {
			r.rules[i] = rule
			return
		}
	}
	r.rules = append(r.rules, rule)
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len reports the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
