package awsadapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// FPStore is the DynamoDB-backed FPStoreAdapter. Table layout is
// (ruleId partition key, eventId sort key); findingId lookups scan
// with a filter expression, trading a hot-path GSI for the single
// table this adapter provisions against, mirroring the local
// adapter's in-memory linear scan over the same field.
type FPStore struct {
	ddb   *dynamodb.Client
	table string
	cfg   Config
}

func (s *FPStore) RecordEvent(ctx context.Context, event domain.FPEvent) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.fpstore.record_event"), func() error {
		_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.table),
			Item:                fpEventToItem(event),
			ConditionExpression: aws.String("attribute_not_exists(eventId)"),
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				return &adapter.ErrDuplicate{EventID: event.EventID}
			}
			return fmt.Errorf("awsadapter: put fp event: %w", err)
		}
		return nil
	})
}

func (s *FPStore) findByFindingID(ctx context.Context, findingID string) ([]domain.FPEvent, error) {
	var out []domain.FPEvent
	var exclusiveStart map[string]types.AttributeValue
	for {
		resp, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			FilterExpression:          aws.String("findingId = :fid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":fid": attrS(findingID)},
			ExclusiveStartKey:         exclusiveStart,
		})
		if err != nil {
			return nil, fmt.Errorf("awsadapter: scan fp events: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, itemToFPEvent(item))
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		exclusiveStart = resp.LastEvaluatedKey
	}
}

func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewedBy, ticket string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.fpstore.mark_fp"), func() error {
		events, err := s.findByFindingID(ctx, findingID)
		if err != nil {
			return err
		}
		idx := -1
		var newest time.Time
		for i, e := range events {
			if idx == -1 || e.Timestamp.After(newest) {
				idx = i
				newest = e.Timestamp
			}
		}
		if idx == -1 {
			return &adapter.ErrNotFound{Kind: "finding", ID: findingID}
		}
		ev := events[idx]
		now := time.Now()
		ev.IsFalsePositive = true
		ev.ReviewedBy = reviewedBy
		ev.SuppressionTicket = ticket
		ev.ReviewedAt = &now
		_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      fpEventToItem(ev),
		})
		if err != nil {
			return fmt.Errorf("awsadapter: update fp event: %w", err)
		}
		return nil
	})
}

func (s *FPStore) queryByRule(ctx context.Context, ruleID string) ([]domain.FPEvent, error) {
	var out []domain.FPEvent
	var exclusiveStart map[string]types.AttributeValue
	for {
		resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    aws.String("ruleId = :rid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":rid": attrS(ruleID)},
			ExclusiveStartKey:         exclusiveStart,
		})
		if err != nil {
			return nil, fmt.Errorf("awsadapter: query fp events: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, itemToFPEvent(item))
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		exclusiveStart = resp.LastEvaluatedKey
	}
}

func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (domain.FPWindow, error) {
	var window domain.FPWindow
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.fpstore.window_by_count"), func() error {
		events, err := s.queryByRule(ctx, ruleID)
		if err != nil {
			return err
		}
		sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.After(events[j].Timestamp) })
		if n > 0 && len(events) > n {
			events = events[:n]
		}
		window = domain.ComputeFPWindow(ruleID, events)
		return nil
	})
	return window, err
}

func (s *FPStore) GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (domain.FPWindow, error) {
	var window domain.FPWindow
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.fpstore.window_by_since"), func() error {
		events, err := s.queryByRule(ctx, ruleID)
		if err != nil {
			return err
		}
		filtered := events[:0]
		for _, e := range events {
			if !e.Timestamp.Before(since) {
				filtered = append(filtered, e)
			}
		}
		window = domain.ComputeFPWindow(ruleID, filtered)
		return nil
	})
	return window, err
}

func (s *FPStore) IsFalsePositive(ctx context.Context, ruleID, findingID string) (bool, error) {
	var isFP bool
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.fpstore.is_fp"), func() error {
		events, err := s.findByFindingID(ctx, findingID)
		if err != nil {
			return err
		}
		for _, e := range events {
			if e.RuleID == ruleID {
				isFP = e.IsFalsePositive
				return nil
			}
		}
		return &adapter.ErrNotFound{Kind: "finding", ID: findingID}
	})
	return isFP, err
}

var _ adapter.FPStoreAdapter = (*FPStore)(nil)
