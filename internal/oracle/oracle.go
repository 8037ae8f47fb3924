// Package oracle wires the L0 gate, rule evaluator, false-positive
// filter, circuit breaker and policy merge into the single Analyze
// entrypoint external callers invoke.
//
// Grounded on wisbric-nightowl's internal/app/app.go (construction-time
// dependency wiring) and the teacher's cmd/server/main.go wiring order;
// the numbered steps inside Analyze follow spec.md §4.G verbatim.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/evaluator"
	"github.com/phasemirror/dissonance-oracle/internal/l0"
	"github.com/phasemirror/dissonance-oracle/internal/nonce"
	"github.com/phasemirror/dissonance-oracle/internal/policy"
	"github.com/phasemirror/dissonance-oracle/internal/redact"
	"github.com/phasemirror/dissonance-oracle/internal/semantic"
	"github.com/phasemirror/dissonance-oracle/pkg/metrics"
)

var validate = validator.New()

// Oracle is the fully-wired entrypoint: one instance handles concurrent
// Analyze calls for the lifetime of a process.
type Oracle struct {
	evaluator    *evaluator.Evaluator
	fpService    *semantic.FPService
	blockCounter *semantic.BlockCounterService
	nonceCache   *nonce.Cache
	patterns     []domain.RedactionPattern
	logger       *slog.Logger
	clock        func() time.Time
	registry     *metrics.MetricsRegistry
	tracer       trace.Tracer
}

// Option configures an Oracle at construction time.
type Option func(*Oracle)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) { o.logger = logger }
}

// WithClock overrides the Oracle's notion of "now", for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Oracle) { o.clock = clock }
}

// WithRedactionPatterns sets the patterns applied to evidence snippets
// before they leave the process in an OracleOutput.
func WithRedactionPatterns(patterns []domain.RedactionPattern) Option {
	return func(o *Oracle) { o.patterns = patterns }
}

// WithMetrics attaches a metrics registry; nil disables metric recording.
func WithMetrics(registry *metrics.MetricsRegistry) Option {
	return func(o *Oracle) { o.registry = registry }
}

// WithTracer overrides the default global tracer, for tests that need a
// deterministic span recorder instead of whatever otel.SetTracerProvider
// installed process-wide.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Oracle) { o.tracer = tracer }
}

// New builds an Oracle from its already-constructed collaborators.
// cmd/oracle is responsible for resolving the adapter ProviderSet (§4.G
// step 1) and building these collaborators from it before calling New.
func New(eval *evaluator.Evaluator, fpService *semantic.FPService, blockCounter *semantic.BlockCounterService, nonceCache *nonce.Cache, opts ...Option) *Oracle {
	o := &Oracle{
		evaluator:    eval,
		fpService:    fpService,
		blockCounter: blockCounter,
		nonceCache:   nonceCache,
		logger:       slog.Default(),
		clock:        time.Now,
		tracer:       otel.Tracer("github.com/phasemirror/dissonance-oracle/internal/oracle"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze runs the full §4.G pipeline over input.
func (o *Oracle) Analyze(ctx context.Context, input domain.OracleInput) (output domain.OracleOutput, err error) {
	ctx, span := o.tracer.Start(ctx, "Oracle.Analyze", trace.WithAttributes(
		attribute.String("mode", string(input.Mode)),
		attribute.String("orgId", input.Context.OrgID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("outcome", string(output.MachineDecision.Outcome)),
				attribute.Bool("degraded", output.Degraded),
			)
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if err := validate.Struct(input); err != nil {
		return domain.OracleOutput{}, fmt.Errorf("oracle: invalid input: %w", err)
	}

	now := o.clock()

	if input.State != nil {
		result := l0.Check(*input.State, now)
		if !result.Passed {
			return domain.OracleOutput{}, &l0.InvariantViolation{
				FailedChecks: result.FailedChecks,
				Violations:   result.Violations(),
			}
		}
	}

	// Step 2: invoke evaluator.
	evalResult := o.evaluator.EvaluateAll(ctx, input)

	// Step 3: drop confirmed false positives; fail-closed on adapter error.
	degraded := false
	remaining := make([]domain.Violation, 0, len(evalResult.Violations))
	for _, v := range evalResult.Violations {
		if v.IsEvaluationError() {
			remaining = append(remaining, v)
			continue
		}
		isFP, err := o.fpService.IsFalsePositive(ctx, v.RuleID, v.FindingID)
		if err != nil {
			o.logger.Warn("fp lookup failed, failing closed", "ruleId", v.RuleID, "findingId", v.FindingID, "error", err)
			degraded = true
			remaining = append(remaining, v)
			continue
		}
		if isFP {
			continue
		}
		remaining = append(remaining, v)
	}

	// Step 4: circuit breaker check over remaining violations.
	circuitBreakerTripped := false
	for _, v := range remaining {
		tripped, err := o.blockCounter.IsTripped(ctx, v.RuleID, input.Context.OrgID)
		if err != nil {
			o.logger.Warn("circuit breaker check failed, failing closed", "ruleId", v.RuleID, "error", err)
			degraded = true
			continue
		}
		if tripped {
			circuitBreakerTripped = true
		}
	}

	ruleIDs := make([]string, 0, len(remaining))
	seen := make(map[string]bool, len(remaining))
	for _, v := range remaining {
		if !seen[v.RuleID] {
			seen[v.RuleID] = true
			ruleIDs = append(ruleIDs, v.RuleID)
		}
	}

	// Step 5: merge into a MachineDecision.
	decision := policy.Decide(domain.DecisionInput{
		Violations:            remaining,
		Mode:                  string(input.Mode),
		Strict:                input.Strict,
		DryRun:                input.DryRun,
		CircuitBreakerTripped: circuitBreakerTripped,
		RulesEvaluated:        ruleIDs,
	}, now)

	if o.registry != nil {
		o.registry.Policy().RecordDecision(string(decision.Outcome), 0)
	}

	// Step 6: on block, increment the circuit-breaker counter.
	if decision.Outcome == domain.OutcomeBlock {
		for _, v := range remaining {
			if err := o.blockCounter.RecordBlock(ctx, v.RuleID, input.Context.OrgID); err != nil {
				o.logger.Warn("block counter increment failed", "ruleId", v.RuleID, "error", err)
				degraded = true
			}
		}
	}

	// Step 7: redact evidence snippets, then emit the report.
	summary := o.buildSummary(remaining, decision)
	critical := 0
	for _, v := range remaining {
		if v.Severity == domain.SeverityCritical {
			critical++
		}
	}

	return domain.OracleOutput{
		MachineDecision: decision,
		Violations:      remaining,
		Summary:         summary,
		Report: domain.OracleReport{
			RulesChecked:    evalResult.RulesEvaluated + evalResult.RulesErrored,
			ViolationsFound: len(remaining),
			CriticalIssues:  critical,
		},
		Degraded: degraded,
	}, nil
}

// buildSummary produces the human-readable multi-line report, redacting
// each violation's message in place with the active nonce, so the
// returned OracleOutput.Violations carry the same redacted text as the
// summary. A message that cannot
// be redacted (cache empty or expired) is still reported, unredacted,
// since withholding the finding entirely would be worse than an
// un-redacted evidence snippet in a degraded-cache window.
func (o *Oracle) buildSummary(violations []domain.Violation, decision domain.MachineDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "decision: %s\n", decision.Outcome)
	for _, reason := range decision.Reasons {
		fmt.Fprintf(&b, "  reason: %s\n", reason)
	}
	for i, v := range violations {
		text := v.Message
		if len(o.patterns) > 0 {
			redacted, err := redact.Redact(o.nonceCache, v.Message, o.patterns)
			if err == nil {
				text = redacted.Value
				violations[i].Message = text
			} else if !errors.Is(err, redact.ErrNoValidNonce) {
				o.logger.Warn("redaction failed", "ruleId", v.RuleID, "error", err)
			}
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", v.Severity, v.RuleID, text)
	}
	return b.String()
}
