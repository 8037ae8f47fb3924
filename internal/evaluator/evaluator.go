package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/pkg/metrics"
)

// Evaluator runs a Registry's rules over an OracleInput. Each rule's
// panic or error is isolated and converted into a
// domain.RuleEvaluationError; no single rule can prevent the others
// from running.
type Evaluator struct {
	registry       *Registry
	maxConcurrency int
	ruleTimeout    time.Duration
	logger         *slog.Logger
	clock          func() time.Time
	metrics        *metrics.EvaluatorMetrics
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxConcurrency bounds how many rules run at once. 0 or negative
// means runtime.NumCPU(), matching spec.md §5's default.
func WithMaxConcurrency(n int) Option {
	return func(e *Evaluator) { e.maxConcurrency = n }
}

// WithRuleTimeout bounds each rule's wall-clock time; a timeout
// surfaces as a PhaseEvaluate evaluation error.
func WithRuleTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.ruleTimeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) { e.clock = clock }
}

// WithMetrics overrides the Prometheus collector.
func WithMetrics(m *metrics.EvaluatorMetrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// New builds an Evaluator over registry.
func New(registry *Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry:       registry,
		maxConcurrency: runtime.NumCPU(),
		ruleTimeout:    10 * time.Second,
		logger:         slog.Default(),
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxConcurrency <= 0 {
		e.maxConcurrency = runtime.NumCPU()
	}
	return e
}

// EvaluateAll runs every registered rule, isolated, bounded by
// maxConcurrency, and returns the aggregated result. Matches spec.md
// §4.E's invariant: rulesEvaluated + rulesErrored == len(registry).
func (e *Evaluator) EvaluateAll(ctx context.Context, input domain.OracleInput) domain.EvaluationResult {
	rules := e.registry.Rules()

	type outcome struct {
		violations []domain.Violation
		ruleErr    *domain.RuleEvaluationError
	}
	outcomes := make([]outcome, len(rules))

	p := pool.New().WithMaxGoroutines(e.maxConcurrency)
	for i, rule := range rules {
		i, rule := i, rule
		p.Go(func() {
			outcomes[i] = e.runOne(ctx, rule, input)
		})
	}
	p.Wait()

	result := domain.EvaluationResult{}
	for _, o := range outcomes {
		if o.ruleErr != nil {
			result.Errors = append(result.Errors, o.ruleErr)
			result.RulesErrored++
			result.Violations = append(result.Violations, o.ruleErr.ToViolation(e.clock()))
			continue
		}
		result.RulesEvaluated++
		result.Violations = append(result.Violations, o.violations...)
	}
	if len(result.Errors) > 0 {
		combined := CombinedError(result)
		e.logger.Warn("rule evaluation errors", "rulesErrored", result.RulesErrored, "error", combined)
	}
	return result
}

// CombinedError folds every rule's error in result into a single error
// via multierr, for callers that want one line to log or return rather
// than walking result.Errors themselves. Returns nil when no rule
// errored.
func CombinedError(result domain.EvaluationResult) error {
	var combined error
	for _, e := range result.Errors {
		combined = multierr.Append(combined, e)
	}
	return combined
}

func (e *Evaluator) runOne(ctx context.Context, rule Rule, input domain.OracleInput) (result struct {
	violations []domain.Violation
	ruleErr    *domain.RuleEvaluationError
}) {
	start := e.clock()
	ruleCtx, cancel := context.WithTimeout(ctx, e.ruleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result.violations = nil
			result.ruleErr = &domain.RuleEvaluationError{
				RuleID:      rule.ID,
				RuleVersion: rule.Version,
				Phase:       domain.PhaseEvaluate,
				Cause:       fmt.Errorf("panic: %v", r),
			}
		}
		outcome := "ok"
		if result.ruleErr != nil {
			outcome = "error"
		}
		if e.metrics != nil {
			e.metrics.RecordRule(rule.ID, outcome, e.clock().Sub(start).Seconds())
			if result.ruleErr != nil {
				e.metrics.RecordRuleError(rule.ID)
			}
		}
	}()

	violations, err := rule.Check(ruleCtx, input)
	if err != nil {
		if ruleCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("rule timed out after %s: %w", e.ruleTimeout, err)
		}
		result.ruleErr = &domain.RuleEvaluationError{
			RuleID:      rule.ID,
			RuleVersion: rule.Version,
			Phase:       domain.PhaseEvaluate,
			Cause:       err,
		}
		return result
	}
	result.violations = violations
	return result
}
