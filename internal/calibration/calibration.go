// Package calibration computes a reputation-weighted consensus false-
// positive rate per rule, robust to a Byzantine minority of
// contributing orgs, gated by K-anonymity.
//
// Grounded on other_examples/32e2bb90_Mindburn-Labs-helm__core-pkg-
// compliance-enforcement-engine.go's weighted-aggregate-with-summary
// shape; the percentile/Z-score filter itself has no pack precedent
// and is built fresh from the pipeline's numbered steps.
package calibration

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/reputation"
	"github.com/phasemirror/dissonance-oracle/pkg/metrics"
)

// ErrInsufficientKAnonymity is returned when fewer distinct
// contributing orgs exist than the configured K-anonymity threshold.
type ErrInsufficientKAnonymity struct {
	RuleID   string
	Distinct int
	K        int
}

func (e *ErrInsufficientKAnonymity) Error() string {
	return fmt.Sprintf("calibration: rule %s has %d distinct contributors, below k-anonymity threshold %d",
		e.RuleID, e.Distinct, e.K)
}

// Config holds the Byzantine-filter and K-anonymity thresholds.
type Config struct {
	ByzantineFilterPercentile float64
	ZScoreThreshold           float64
	KAnonymityThreshold       int
}

// DefaultConfig matches spec.md §4.H's stated defaults.
func DefaultConfig() Config {
	return Config{ByzantineFilterPercentile: 0.2, ZScoreThreshold: 3.0, KAnonymityThreshold: 10}
}

// Engine computes calibration results for rules.
type Engine struct {
	fpStore          adapter.FPStoreAdapter
	calibrationStore adapter.CalibrationStoreAdapter
	reputation       reputation.Engine
	updater          *AsyncUpdater
	config           Config
	clock            func() time.Time
	metrics          *metrics.CalibrationMetrics
}

// New builds an Engine. updater and metricsCollector may be nil; a nil
// updater skips consistency score write-back, a nil metricsCollector
// skips metric recording (useful in tests).
func New(fpStore adapter.FPStoreAdapter, calibrationStore adapter.CalibrationStoreAdapter, repEngine reputation.Engine, updater *AsyncUpdater, config Config, metricsCollector *metrics.CalibrationMetrics) *Engine {
	return &Engine{
		fpStore:          fpStore,
		calibrationStore: calibrationStore,
		reputation:       repEngine,
		updater:          updater,
		config:           config,
		clock:            time.Now,
		metrics:          metricsCollector,
	}
}

type contributor struct {
	orgIDHash string
	total     int
	fp        int
	fpRate    float64
	weight    domain.ContributorWeight
}

// AggregateFPsByRule runs the full calibration pipeline for ruleID.
func (e *Engine) AggregateFPsByRule(ctx context.Context, ruleID string) (domain.CalibrationResultExtended, error) {
	window, err := e.fpStore.GetWindowBySince(ctx, ruleID, time.Time{})
	if err != nil {
		return domain.CalibrationResultExtended{}, fmt.Errorf("calibration: fetch events: %w", err)
	}

	byOrg := groupByOrg(window.Events)
	if len(byOrg) < e.config.KAnonymityThreshold {
		if e.metrics != nil {
			e.metrics.RecordKAnonymityRejection()
		}
		return domain.CalibrationResultExtended{}, &ErrInsufficientKAnonymity{
			RuleID: ruleID, Distinct: len(byOrg), K: e.config.KAnonymityThreshold,
		}
	}

	contributors := make([]contributor, 0, len(byOrg))
	for orgHash, events := range byOrg {
		total, fp := 0, 0
		for _, e := range events {
			if e.Pending() {
				continue
			}
			total++
			if e.IsFalsePositive {
				fp++
			}
		}
		if total == 0 {
			continue
		}
		weight, err := e.reputation.CalculateContributionWeight(ctx, orgHash)
		if err != nil {
			return domain.CalibrationResultExtended{}, fmt.Errorf("calibration: reputation weight for %s: %w", orgHash, err)
		}
		contributors = append(contributors, contributor{
			orgIDHash: orgHash, total: total, fp: fp,
			fpRate: float64(fp) / float64(total), weight: weight,
		})
	}

	trusted, outliersFiltered, lowReputationFiltered := e.byzantineFilter(contributors)

	result := domain.CalibrationResultExtended{
		RuleID:     ruleID,
		ComputedAt: e.clock(),
		FilterSummary: domain.FilterSummary{
			OutliersFiltered:      outliersFiltered,
			LowReputationFiltered: lowReputationFiltered,
			ZScoreThreshold:       e.config.ZScoreThreshold,
			ByzantinePercentile:   e.config.ByzantineFilterPercentile,
		},
		TrustedContributors: len(trusted),
	}
	if len(contributors) > 0 {
		result.FilterSummary.FilterRate = float64(outliersFiltered+lowReputationFiltered) / float64(len(contributors))
	}

	result.ConsensusFPRate = consensusRate(trusted)
	result.Confidence = confidence(trusted)
	result.ConfidenceCategory = confidenceCategory(len(trusted), result.Confidence)

	if err := e.calibrationStore.StoreCalibrationResult(ctx, result); err != nil {
		return domain.CalibrationResultExtended{}, fmt.Errorf("calibration: store result: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordRun("ok", len(contributors), outliersFiltered, result.Confidence)
	}

	e.updateConsistencyScores(trusted, result.ConsensusFPRate)

	return result, nil
}

func groupByOrg(events []domain.FPEvent) map[string][]domain.FPEvent {
	byOrg := make(map[string][]domain.FPEvent)
	for _, e := range events {
		byOrg[e.Context.OrgIDHash] = append(byOrg[e.Context.OrgIDHash], e)
	}
	return byOrg
}

// byzantineFilter drops contributors below the reputation percentile
// and, once the sample is large enough, outliers by FP-rate Z-score.
func (e *Engine) byzantineFilter(contributors []contributor) (trusted []contributor, outliersFiltered, lowReputationFiltered int) {
	if len(contributors) == 0 {
		return nil, 0, 0
	}

	reputations := make([]float64, len(contributors))
	for i, c := range contributors {
		reputations[i] = c.weight.ReputationScore
	}
	reputationCutoff := percentile(reputations, e.config.ByzantineFilterPercentile)

	byReputation := make([]contributor, 0, len(contributors))
	for _, c := range contributors {
		if c.weight.ReputationScore < reputationCutoff {
			lowReputationFiltered++
			continue
		}
		byReputation = append(byReputation, c)
	}

	if len(byReputation) < 5 {
		return byReputation, outliersFiltered, lowReputationFiltered
	}

	mean, stddev := weightedMeanStddev(byReputation)
	if stddev == 0 {
		return byReputation, outliersFiltered, lowReputationFiltered
	}

	for _, c := range byReputation {
		z := math.Abs(c.fpRate-mean) / stddev
		if z > e.config.ZScoreThreshold {
			outliersFiltered++
			continue
		}
		trusted = append(trusted, c)
	}
	return trusted, outliersFiltered, lowReputationFiltered
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func weightedMeanStddev(contributors []contributor) (mean, stddev float64) {
	var weightSum, weightedSum float64
	for _, c := range contributors {
		weightSum += c.weight.Weight
		weightedSum += c.weight.Weight * c.fpRate
	}
	if weightSum == 0 {
		return 0, 0
	}
	mean = weightedSum / weightSum

	var variance float64
	for _, c := range contributors {
		diff := c.fpRate - mean
		variance += c.weight.Weight * diff * diff
	}
	variance /= weightSum
	return mean, math.Sqrt(variance)
}

func consensusRate(trusted []contributor) float64 {
	var weightSum, weightedSum float64
	for _, c := range trusted {
		weightSum += c.weight.Weight
		weightedSum += c.weight.Weight * c.fpRate
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// confidence blends contributor count, rate agreement, event volume
// and mean reputation into a single 0..1 score per spec.md §4.H step 5.
func confidence(trusted []contributor) float64 {
	if len(trusted) == 0 {
		return 0
	}

	contributorScore := math.Min(1, float64(len(trusted))/20.0)

	mean, stddev := weightedMeanStddev(trusted)
	agreementScore := 1.0
	if mean > 0 {
		cv := stddev / mean
		agreementScore = math.Max(0, 1-cv)
	}

	totalEvents := 0
	var reputationSum float64
	for _, c := range trusted {
		totalEvents += c.total
		reputationSum += c.weight.ReputationScore
	}
	eventScore := math.Min(1, float64(totalEvents)/100.0)
	meanReputationScore := reputationSum / float64(len(trusted))

	return 0.35*contributorScore + 0.30*agreementScore + 0.20*eventScore + 0.15*meanReputationScore
}

func confidenceCategory(trustedCount int, confidence float64) domain.ConfidenceCategory {
	if trustedCount < 3 {
		return domain.ConfidenceInsufficient
	}
	switch {
	case confidence >= 0.7:
		return domain.ConfidenceHigh
	case confidence >= 0.4:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// updateConsistencyScores submits each trusted contributor's deviation
// from consensus to the async updater, per spec.md §4.H step 6. Never
// blocks the caller; failures are the updater's concern.
func (e *Engine) updateConsistencyScores(trusted []contributor, consensus float64) {
	if e.updater == nil {
		return
	}
	for _, c := range trusted {
		dev := math.Abs(c.fpRate - consensus)
		delta := consistencyDelta(dev)
		if delta == 0 {
			continue
		}
		e.updater.Submit(c.orgIDHash, delta)
	}
}

// consistencyDelta maps a contributor's absolute deviation from
// consensus to a reputation delta per spec.md §4.H step 6's table.
func consistencyDelta(deviation float64) float64 {
	switch {
	case deviation < 0.02:
		return 0.05
	case deviation < 0.05:
		return 0.02
	case deviation < 0.10:
		return 0.01
	case deviation > 0.30:
		return -0.10
	case deviation > 0.20:
		return -0.05
	default:
		return 0
	}
}
