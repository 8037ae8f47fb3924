package domain

import "fmt"

// BlockCounterEntry is one hourly bucket tracking how many times a rule
// has produced a block-worthy violation for a given org within the
// current circuit-breaker window.
type BlockCounterEntry struct {
	BucketKey string `json:"bucketKey"`
	Count     int64  `json:"count"`
	ExpiresAt int64  `json:"expiresAt"`
}

// BlockCounterBucketKey computes the "{ruleId}:{orgId}:{hourEpoch}" bucket
// key used by both the local and cloud block-counter adapters. An empty
// orgId degrades the key to per-rule bucketing, per the Open Questions
// resolution on circuit-breaker scope.
func BlockCounterBucketKey(ruleID, orgID string, hourEpoch int64) string {
	return fmt.Sprintf("%s:%s:%d", ruleID, orgID, hourEpoch)
}
