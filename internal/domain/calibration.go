package domain

import "time"

// ConfidenceCategory buckets a CalibrationResultExtended's confidence
// score for human-facing reporting.
type ConfidenceCategory string

const (
	ConfidenceInsufficient ConfidenceCategory = "insufficient"
	ConfidenceLow          ConfidenceCategory = "low"
	ConfidenceMedium       ConfidenceCategory = "medium"
	ConfidenceHigh         ConfidenceCategory = "high"
)

// FilterSummary reports what the Byzantine filter excluded and why, so a
// calibration result is auditable after the fact.
type FilterSummary struct {
	OutliersFiltered      int     `json:"outliersFiltered"`
	LowReputationFiltered int     `json:"lowReputationFiltered"`
	FilterRate            float64 `json:"filterRate"`
	ZScoreThreshold        float64 `json:"zScoreThreshold"`
	ByzantinePercentile    float64 `json:"byzantinePercentile"`
}

// CalibrationResultExtended is the persisted output of one
// aggregateFPsByRule pass.
type CalibrationResultExtended struct {
	RuleID              string             `json:"ruleId"`
	ConsensusFPRate     float64            `json:"consensusFpRate"`
	Confidence          float64            `json:"confidence"`
	ConfidenceCategory  ConfidenceCategory `json:"confidenceCategory"`
	TrustedContributors int                `json:"trustedContributors"`
	FilterSummary       FilterSummary      `json:"filterSummary"`
	ComputedAt          time.Time          `json:"computedAt"`
}

// ContributorWeight is the shape returned by
// ReputationEngine.CalculateContributionWeight.
type ContributorWeight struct {
	OrgIDHash       string  `json:"orgIdHash"`
	Weight          float64 `json:"weight"`
	ReputationScore float64 `json:"reputationScore"`
	Stake           float64 `json:"stake"`
}

// ContributorObservation is one org's raw per-rule FP-rate sample before
// weighting and filtering.
type ContributorObservation struct {
	OrgIDHash  string
	FPRate     float64
	EventCount int
	Weight     ContributorWeight
}
