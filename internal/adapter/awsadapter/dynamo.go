package awsadapter

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func attrS(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func attrBool(v bool) types.AttributeValue { return &types.AttributeValueMemberBOOL{Value: v} }

func strAttr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func boolAttr(item map[string]types.AttributeValue, key string) bool {
	if v, ok := item[key].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func timeAttr(item map[string]types.AttributeValue, key string) time.Time {
	s := strAttr(item, key)
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func timePtrAttr(item map[string]types.AttributeValue, key string) *time.Time {
	s := strAttr(item, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// fpEventToItem/itemToFPEvent mirror domain.FPEvent's fields onto a
// DynamoDB item keyed by (ruleId, eventId). findingId is a plain
// attribute; MarkFalsePositive/IsFalsePositive find it with a filtered
// Scan, not an index.
func fpEventToItem(e domain.FPEvent) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"ruleId":          attrS(e.RuleID),
		"eventId":         attrS(e.EventID),
		"findingId":       attrS(e.FindingID),
		"ruleVersion":     attrS(e.RuleVersion),
		"outcome":         attrS(string(e.Outcome)),
		"isFalsePositive": attrBool(e.IsFalsePositive),
		"reviewedBy":      attrS(e.ReviewedBy),
		"ticket":          attrS(e.SuppressionTicket),
		"timestamp":       attrS(e.Timestamp.Format(time.RFC3339Nano)),
		"orgIdHash":       attrS(e.Context.OrgIDHash),
		"repoId":          attrS(e.Context.RepoID),
		"branch":          attrS(e.Context.Branch),
		"eventType":       attrS(e.Context.EventType),
	}
	if e.ReviewedAt != nil {
		item["reviewedAt"] = attrS(e.ReviewedAt.Format(time.RFC3339Nano))
	}
	return item
}

func itemToFPEvent(item map[string]types.AttributeValue) domain.FPEvent {
	return domain.FPEvent{
		EventID:           strAttr(item, "eventId"),
		RuleID:            strAttr(item, "ruleId"),
		RuleVersion:       strAttr(item, "ruleVersion"),
		FindingID:         strAttr(item, "findingId"),
		Outcome:           domain.Outcome(strAttr(item, "outcome")),
		IsFalsePositive:   boolAttr(item, "isFalsePositive"),
		ReviewedBy:        strAttr(item, "reviewedBy"),
		SuppressionTicket: strAttr(item, "ticket"),
		ReviewedAt:        timePtrAttr(item, "reviewedAt"),
		Timestamp:         timeAttr(item, "timestamp"),
		Context: domain.FPEventContext{
			OrgIDHash: strAttr(item, "orgIdHash"),
			RepoID:    strAttr(item, "repoId"),
			Branch:    strAttr(item, "branch"),
			EventType: strAttr(item, "eventType"),
		},
	}
}

func consentToItem(c domain.Consent) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"orgId":     attrS(c.OrgID),
		"feature":   attrS(c.Feature),
		"repoId":    attrS(c.RepoID),
		"granted":   attrBool(c.Granted),
		"grantedAt": attrS(c.GrantedAt.Format(time.RFC3339Nano)),
		"grantedBy": attrS(c.GrantedBy),
		"revokedBy": attrS(c.RevokedBy),
	}
	if c.ExpiresAt != nil {
		item["expiresAt"] = attrS(c.ExpiresAt.Format(time.RFC3339Nano))
	}
	if c.RevokedAt != nil {
		item["revokedAt"] = attrS(c.RevokedAt.Format(time.RFC3339Nano))
	}
	return item
}

func itemToConsent(item map[string]types.AttributeValue) domain.Consent {
	return domain.Consent{
		OrgID:     strAttr(item, "orgId"),
		Feature:   strAttr(item, "feature"),
		RepoID:    strAttr(item, "repoId"),
		Granted:   boolAttr(item, "granted"),
		GrantedAt: timeAttr(item, "grantedAt"),
		GrantedBy: strAttr(item, "grantedBy"),
		ExpiresAt: timePtrAttr(item, "expiresAt"),
		RevokedAt: timePtrAttr(item, "revokedAt"),
		RevokedBy: strAttr(item, "revokedBy"),
	}
}

func floatAttr(item map[string]types.AttributeValue, key string) float64 {
	v, _ := strconv.ParseFloat(strAttr(item, key), 64)
	return v
}

func intAttr(item map[string]types.AttributeValue, key string) int {
	v, _ := strconv.Atoi(strAttr(item, key))
	return v
}

func calibrationToItem(r domain.CalibrationResultExtended) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ruleId":                attrS(r.RuleID),
		"consensusFpRate":       attrS(strconv.FormatFloat(r.ConsensusFPRate, 'f', -1, 64)),
		"confidence":            attrS(strconv.FormatFloat(r.Confidence, 'f', -1, 64)),
		"confidenceCategory":    attrS(string(r.ConfidenceCategory)),
		"trustedContributors":   attrS(strconv.Itoa(r.TrustedContributors)),
		"computedAt":            attrS(r.ComputedAt.Format(time.RFC3339Nano)),
		"outliersFiltered":      attrS(strconv.Itoa(r.FilterSummary.OutliersFiltered)),
		"lowReputationFiltered": attrS(strconv.Itoa(r.FilterSummary.LowReputationFiltered)),
		"filterRate":            attrS(strconv.FormatFloat(r.FilterSummary.FilterRate, 'f', -1, 64)),
		"zScoreThreshold":       attrS(strconv.FormatFloat(r.FilterSummary.ZScoreThreshold, 'f', -1, 64)),
		"byzantinePercentile":   attrS(strconv.FormatFloat(r.FilterSummary.ByzantinePercentile, 'f', -1, 64)),
	}
}

func itemToCalibration(item map[string]types.AttributeValue) domain.CalibrationResultExtended {
	return domain.CalibrationResultExtended{
		RuleID:              strAttr(item, "ruleId"),
		ConsensusFPRate:     floatAttr(item, "consensusFpRate"),
		Confidence:          floatAttr(item, "confidence"),
		ConfidenceCategory:  domain.ConfidenceCategory(strAttr(item, "confidenceCategory")),
		TrustedContributors: intAttr(item, "trustedContributors"),
		ComputedAt:          timeAttr(item, "computedAt"),
		FilterSummary: domain.FilterSummary{
			OutliersFiltered:      intAttr(item, "outliersFiltered"),
			LowReputationFiltered: intAttr(item, "lowReputationFiltered"),
			FilterRate:            floatAttr(item, "filterRate"),
			ZScoreThreshold:       floatAttr(item, "zScoreThreshold"),
			ByzantinePercentile:   floatAttr(item, "byzantinePercentile"),
		},
	}
}
