package awsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// ConsentStore is the DynamoDB-backed ConsentStoreAdapter, keyed by
// (orgId partition key, feature sort key) with one item holding the
// latest grant/revoke state — a compaction the local adapter's
// append-only log doesn't need, since DynamoDB has no cheap way to
// replay a per-feature history the way an in-memory scan does.
type ConsentStore struct {
	ddb   *dynamodb.Client
	table string
	cfg   Config
}

func (s *ConsentStore) getItem(ctx context.Context, orgID, feature string) (map[string]types.AttributeValue, error) {
	resp, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"orgId":   attrS(orgID),
			"feature": attrS(feature),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("awsadapter: get consent: %w", err)
	}
	return resp.Item, nil
}

func (s *ConsentStore) CheckResourceConsent(ctx context.Context, orgID, feature string) (bool, error) {
	var holds bool
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.consent.check"), func() error {
		item, err := s.getItem(ctx, orgID, feature)
		if err != nil {
			return err
		}
		if item == nil {
			holds = false
			return nil
		}
		holds = itemToConsent(item).Holds(time.Now(), "")
		return nil
	})
	return holds, err
}

func (s *ConsentStore) GrantConsent(ctx context.Context, orgID, feature, grantor string, expiresAt *time.Time) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.consent.grant"), func() error {
		c := domain.Consent{
			OrgID:     orgID,
			Feature:   feature,
			Granted:   true,
			GrantedAt: time.Now(),
			GrantedBy: grantor,
			ExpiresAt: expiresAt,
		}
		_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      consentToItem(c),
		})
		if err != nil {
			return fmt.Errorf("awsadapter: put consent: %w", err)
		}
		return nil
	})
}

func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID, feature, revoker string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.consent.revoke"), func() error {
		item, err := s.getItem(ctx, orgID, feature)
		if err != nil {
			return err
		}
		if item == nil {
			return &adapter.ErrNotFound{Kind: "consent", ID: orgID + ":" + feature}
		}
		c := itemToConsent(item)
		now := time.Now()
		c.RevokedAt = &now
		c.RevokedBy = revoker
		_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      consentToItem(c),
		})
		if err != nil {
			return fmt.Errorf("awsadapter: revoke consent: %w", err)
		}
		return nil
	})
}

func (s *ConsentStore) listByOrg(ctx context.Context, orgID string) ([]domain.Consent, error) {
	var out []domain.Consent
	var exclusiveStart map[string]types.AttributeValue
	for {
		resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    aws.String("orgId = :oid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":oid": attrS(orgID)},
			ExclusiveStartKey:         exclusiveStart,
		})
		if err != nil {
			return nil, fmt.Errorf("awsadapter: query consent: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, itemToConsent(item))
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		exclusiveStart = resp.LastEvaluatedKey
	}
}

func (s *ConsentStore) GetConsentSummary(ctx context.Context, orgID string) (domain.ConsentSummary, error) {
	var summary domain.ConsentSummary
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.consent.summary"), func() error {
		records, err := s.listByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		summary = domain.ConsentSummary{OrgID: orgID, ActiveFeatures: []string{}}
		now := time.Now()
		for _, r := range records {
			if summary.LastUpdated == nil || r.GrantedAt.After(*summary.LastUpdated) {
				summary.LastUpdated = &r.GrantedAt
			}
			if r.Holds(now, "") {
				summary.ActiveFeatures = append(summary.ActiveFeatures, r.Feature)
			} else if r.RevokedAt != nil {
				summary.RevokedCount++
			}
		}
		return nil
	})
	return summary, err
}

func (s *ConsentStore) CheckMultipleResources(ctx context.Context, orgID string, features []string) (map[string]bool, error) {
	result := make(map[string]bool, len(features))
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.consent.check_multiple"), func() error {
		now := time.Now()
		for _, feature := range features {
			item, err := s.getItem(ctx, orgID, feature)
			if err != nil {
				return err
			}
			result[feature] = item != nil && itemToConsent(item).Holds(now, "")
		}
		return nil
	})
	return result, err
}

var _ adapter.ConsentStoreAdapter = (*ConsentStore)(nil)
