package ociadapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// FPStore is the NoSQL Database-backed FPStoreAdapter. Table layout is
// (ruleId partition key, eventId sort key); findingId lookups run a
// table scan via SQL, trading a hot-path secondary index for the
// single table this adapter provisions against, mirroring the local
// adapter's in-memory linear scan over the same field.
type FPStore struct {
	client *nosql.NosqlClient
	table  string
	cfg    Config
}

func (s *FPStore) RecordEvent(ctx context.Context, event domain.FPEvent) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.fpstore.record_event"), func() error {
		value, err := toRowValue(event)
		if err != nil {
			return fmt.Errorf("ociadapter: marshal fp event: %w", err)
		}
		resp, err := s.client.PutRow(ctx, nosql.PutRowRequest{
			TableNameOrId: common.String(s.table),
			PutRowDetails: nosql.PutRowDetails{
				CompartmentId: common.String(s.cfg.CompartmentID),
				Value:         value,
				Option:        nosql.PutRowDetailsOptionIfAbsent,
			},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: put fp event: %w", err)
		}
		if resp.Version == nil {
			return &adapter.ErrDuplicate{EventID: event.EventID}
		}
		return nil
	})
}

func (s *FPStore) query(ctx context.Context, whereClause string) ([]domain.FPEvent, error) {
	var out []domain.FPEvent
	var page *string
	for {
		stmt := fmt.Sprintf("SELECT * FROM %s t WHERE %s", s.table, whereClause)
		resp, err := s.client.Query(ctx, nosql.QueryRequest{
			QueryDetails: nosql.QueryDetails{
				CompartmentId: common.String(s.cfg.CompartmentID),
				Statement:     common.String(stmt),
			},
			Page: page,
		})
		if err != nil {
			return nil, fmt.Errorf("ociadapter: query fp events: %w", err)
		}
		for _, item := range resp.Items {
			var event domain.FPEvent
			if err := fromRowValue(item, &event); err != nil {
				return nil, fmt.Errorf("ociadapter: decode fp event: %w", err)
			}
			out = append(out, event)
		}
		if resp.OpcNextPage == nil {
			return out, nil
		}
		page = resp.OpcNextPage
	}
}

func (s *FPStore) findByFindingID(ctx context.Context, findingID string) ([]domain.FPEvent, error) {
	return s.query(ctx, "t.findingId = "+quoteLiteral(findingID))
}

func (s *FPStore) queryByRule(ctx context.Context, ruleID string) ([]domain.FPEvent, error) {
	return s.query(ctx, "t.ruleId = "+quoteLiteral(ruleID))
}

func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewedBy, ticket string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.fpstore.mark_fp"), func() error {
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
		value, err := toRowValue(ev)
		if err != nil {
			return fmt.Errorf("ociadapter: marshal fp event: %w", err)
		}
		_, err = s.client.PutRow(ctx, nosql.PutRowRequest{
			TableNameOrId: common.String(s.table),
			PutRowDetails: nosql.PutRowDetails{
				CompartmentId: common.String(s.cfg.CompartmentID),
				Value:         value,
			},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: update fp event: %w", err)
		}
		return nil
	})
}

func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (domain.FPWindow, error) {
	var window domain.FPWindow
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.fpstore.window_by_count"), func() error {
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
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.fpstore.window_by_since"), func() error {
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
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.fpstore.is_fp"), func() error {
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
