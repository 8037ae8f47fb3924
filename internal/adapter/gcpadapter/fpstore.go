package gcpadapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// FPStore is the Firestore-backed FPStoreAdapter. Events are stored
// one document per eventId, using the domain.FPEvent struct directly
// as the Firestore document shape (no separate wire struct needed,
// since the field-reflection marshaling Firestore's client does by
// default is exactly what both RecordEvent and the window queries
// need).
type FPStore struct {
	collection *firestore.CollectionRef
	cfg        Config
}

func (s *FPStore) RecordEvent(ctx context.Context, event domain.FPEvent) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.fpstore.record_event"), func() error {
		_, err := s.collection.Doc(event.EventID).Create(ctx, event)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return &adapter.ErrDuplicate{EventID: event.EventID}
			}
			return fmt.Errorf("gcpadapter: create fp event: %w", err)
		}
		return nil
	})
}

func (s *FPStore) queryByRule(ctx context.Context, ruleID string) ([]domain.FPEvent, error) {
	var out []domain.FPEvent
	iter := s.collection.Where("RuleID", "==", ruleID).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gcpadapter: query fp events: %w", err)
		}
		var event domain.FPEvent
		if err := doc.DataTo(&event); err != nil {
			return nil, fmt.Errorf("gcpadapter: decode fp event: %w", err)
		}
		out = append(out, event)
	}
}

func (s *FPStore) findByFindingID(ctx context.Context, findingID string) ([]domain.FPEvent, error) {
	var out []domain.FPEvent
	iter := s.collection.Where("FindingID", "==", findingID).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gcpadapter: query fp events by finding: %w", err)
		}
		var event domain.FPEvent
		if err := doc.DataTo(&event); err != nil {
			return nil, fmt.Errorf("gcpadapter: decode fp event: %w", err)
		}
		out = append(out, event)
	}
}

func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewedBy, ticket string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.fpstore.mark_fp"), func() error {
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
		_, err = s.collection.Doc(ev.EventID).Set(ctx, ev)
		if err != nil {
			return fmt.Errorf("gcpadapter: update fp event: %w", err)
		}
		return nil
	})
}

func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (domain.FPWindow, error) {
	var window domain.FPWindow
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.fpstore.window_by_count"), func() error {
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
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.fpstore.window_by_since"), func() error {
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
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.fpstore.is_fp"), func() error {
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
