package domain

import "time"

// Outcome is the machine decision's outcome enum, also used to tag the
// recorded outcome of the event a finding originated from.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeWarn  Outcome = "warn"
	OutcomeBlock Outcome = "block"
)

// FPEventContext carries the denormalized fields needed to compute
// per-org, per-repo false-positive statistics without a join.
type FPEventContext struct {
	OrgIDHash string `json:"orgIdHash"`
	RepoID    string `json:"repoId"`
	Branch    string `json:"branch"`
	EventType string `json:"eventType"`
}

// FPEvent is one finding reviewed (or pending review) for false-positive
// status. Primary key is (RuleID, EventID+Timestamp); FindingID is a
// unique secondary index.
type FPEvent struct {
	EventID           string          `json:"eventId"`
	RuleID            string          `json:"ruleId"`
	RuleVersion       string          `json:"ruleVersion"`
	FindingID         string          `json:"findingId"`
	Outcome           Outcome         `json:"outcome"`
	IsFalsePositive   bool            `json:"isFalsePositive"`
	ReviewedBy        string          `json:"reviewedBy,omitempty"`
	SuppressionTicket string          `json:"suppressionTicket,omitempty"`
	ReviewedAt        *time.Time      `json:"reviewedAt,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
	Context           FPEventContext  `json:"context"`
}

// Pending reports whether this event has not yet been reviewed either way.
func (e FPEvent) Pending() bool {
	return e.ReviewedAt == nil
}

// FPWindowStatistics is the computed aggregate over an FPWindow's events.
type FPWindowStatistics struct {
	Total          int     `json:"total"`
	FalsePositives int     `json:"falsePositives"`
	TruePositives  int     `json:"truePositives"`
	Pending        int     `json:"pending"`
	ObservedFPR    float64 `json:"observedFPR"`
}

// FPWindow is a derived, non-persistent view over a rule's recent events.
type FPWindow struct {
	RuleID     string              `json:"ruleId"`
	Events     []FPEvent           `json:"events"`
	Statistics FPWindowStatistics `json:"statistics"`
}

// ComputeFPWindow builds an FPWindow's statistics from its events.
// observedFPR = falsePositives / max(1, total - pending).
func ComputeFPWindow(ruleID string, events []FPEvent) FPWindow {
	stats := FPWindowStatistics{Total: len(events)}
	for _, e := range events {
		if e.Pending() {
			stats.Pending++
			continue
		}
		if e.IsFalsePositive {
			stats.FalsePositives++
		} else {
			stats.TruePositives++
		}
	}
	denom := stats.Total - stats.Pending
	if denom < 1 {
		denom = 1
	}
	stats.ObservedFPR = float64(stats.FalsePositives) / float64(denom)
	return FPWindow{RuleID: ruleID, Events: events, Statistics: stats}
}
