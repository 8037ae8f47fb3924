// Package semantic wraps the raw adapter contracts with the Oracle's
// business rules: insert-if-absent classification for FP events,
// windowed statistics lookups, atomic hourly block-counter bucketing,
// and consent "holds" evaluation.
//
// Grounded on internal/core/services/deduplication.go's insert-if-
// absent + typed result classification idiom and
// internal/core/services/classification.go's windowed-statistics idiom.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// RecordAction classifies the outcome of FPService.RecordEvent, mirroring
// the teacher's ProcessAction (created/updated/ignored) generalized to
// the FP event's append-only, insert-if-absent semantics.
type RecordAction string

const (
	RecordActionCreated  RecordAction = "created"
	RecordActionDuplicate RecordAction = "duplicate"
)

// RecordResult is the outcome of one RecordEvent call.
type RecordResult struct {
	Action         RecordAction
	Event          domain.FPEvent
	ProcessingTime time.Duration
}

// FPService wraps FPStoreAdapter with insert-if-absent classification
// and FP-window convenience lookups.
type FPService struct {
	store  adapter.FPStoreAdapter
	logger *slog.Logger
	cache  *WindowCache
}

// FPServiceOption configures an FPService.
type FPServiceOption func(*FPService)

// WithWindowCache fronts GetWindow with a read-through WindowCache. A
// nil cache (the default) disables caching entirely, so every GetWindow
// call hits store directly.
func WithWindowCache(cache *WindowCache) FPServiceOption {
	return func(s *FPService) { s.cache = cache }
}

// NewFPService wraps store.
func NewFPService(store adapter.FPStoreAdapter, logger *slog.Logger, opts ...FPServiceOption) *FPService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FPService{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordEvent records event, classifying whether it was newly created
// or ignored as a duplicate of an event already seen with the same
// EventID. A duplicate is never an error: replays of the same finding
// report (e.g. a retried webhook) must be idempotent.
func (s *FPService) RecordEvent(ctx context.Context, event domain.FPEvent) (RecordResult, error) {
	start := time.Now()

	err := s.store.RecordEvent(ctx, event)
	if err == nil {
		if s.cache != nil {
			s.cache.Invalidate(event.RuleID)
		}
		s.logger.Debug("recorded fp event", "ruleId", event.RuleID, "eventId", event.EventID)
		return RecordResult{Action: RecordActionCreated, Event: event, ProcessingTime: time.Since(start)}, nil
	}

	var dup *adapter.ErrDuplicate
	if errors.As(err, &dup) {
		s.logger.Debug("ignored duplicate fp event", "ruleId", event.RuleID, "eventId", event.EventID)
		return RecordResult{Action: RecordActionDuplicate, Event: event, ProcessingTime: time.Since(start)}, nil
	}

	return RecordResult{}, fmt.Errorf("semantic: record fp event: %w", err)
}

// MarkReviewed marks findingID reviewed, classifying the review outcome.
//
// This doesn't invalidate the window cache: MarkFalsePositive only
// carries findingID, not ruleID, so there's no cache key to bump here.
// A reviewed event's window entry is stale until its cache generation's
// TTL or LRU eviction catches up; RecordEvent's invalidation keeps the
// common path (new events) accurate immediately.
func (s *FPService) MarkReviewed(ctx context.Context, findingID, reviewedBy, ticket string) error {
	if err := s.store.MarkFalsePositive(ctx, findingID, reviewedBy, ticket); err != nil {
		return fmt.Errorf("semantic: mark reviewed: %w", err)
	}
	return nil
}

// IsFalsePositive reports whether findingID has already been reviewed
// and confirmed a false positive for ruleID.
func (s *FPService) IsFalsePositive(ctx context.Context, ruleID, findingID string) (bool, error) {
	isFP, err := s.store.IsFalsePositive(ctx, ruleID, findingID)
	if err != nil {
		var notFound *adapter.ErrNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("semantic: is false positive: %w", err)
	}
	return isFP, nil
}

// GetWindow returns the FP window for ruleID: the most recent n events
// if n > 0, otherwise every event at or after since. When a WindowCache
// is configured (WithWindowCache), the lookup is read-through: a cache
// hit skips the store entirely, a miss populates the cache afterward.
func (s *FPService) GetWindow(ctx context.Context, ruleID string, n int, since *time.Time) (domain.FPWindow, error) {
	if n > 0 {
		variant := fmt.Sprintf("count=%d", n)
		if s.cache != nil {
			if window, ok := s.cache.Get(ctx, ruleID, variant); ok {
				return window, nil
			}
		}
		window, err := s.store.GetWindowByCount(ctx, ruleID, n)
		if err != nil {
			return domain.FPWindow{}, fmt.Errorf("semantic: get window by count: %w", err)
		}
		if s.cache != nil {
			s.cache.Set(ctx, ruleID, variant, window)
		}
		return window, nil
	}
	if since == nil {
		return domain.FPWindow{}, fmt.Errorf("semantic: get window: either n or since must be set")
	}
	variant := fmt.Sprintf("since=%d", since.UnixNano())
	if s.cache != nil {
		if window, ok := s.cache.Get(ctx, ruleID, variant); ok {
			return window, nil
		}
	}
	window, err := s.store.GetWindowBySince(ctx, ruleID, *since)
	if err != nil {
		return domain.FPWindow{}, fmt.Errorf("semantic: get window by since: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, ruleID, variant, window)
	}
	return window, nil
}
