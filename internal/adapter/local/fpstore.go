package local

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// FPStore is the file-backed FPStoreAdapter. Events are appended to a
// single JSON array, guarded by mu. MarkFalsePositive looks events up
// by findingId alone; IsFalsePositive by (ruleId, findingId).
type FPStore struct {
	mu   sync.Mutex
	path string
}

// NewFPStore opens (or creates) the FP-event collection under dataDir.
func NewFPStore(dataDir string) (*FPStore, error) {
	return &FPStore{path: filepath.Join(dataDir, "fp-events.json")}, nil
}

func (s *FPStore) load() ([]domain.FPEvent, error) {
	events := make([]domain.FPEvent, 0)
	if err := readJSONArray(s.path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *FPStore) save(events []domain.FPEvent) error {
	return writeJSONArrayAtomic(s.path, events)
}

// RecordEvent appends an event, rejecting duplicates by eventId.
func (s *FPStore) RecordEvent(ctx context.Context, event domain.FPEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load()
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.EventID == event.EventID {
			return &adapter.ErrDuplicate{EventID: event.EventID}
		}
	}
	events = append(events, event)
	return s.save(events)
}

// MarkFalsePositive finds the most recent event for findingID and
// marks it reviewed. It never touches evaluation-error events: those
// are filtered out by domain.Violation.Kind before they ever reach the
// FP store, so this never needs to special-case them here.
func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewedBy, ticket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load()
	if err != nil {
		return err
	}

	idx := -1
	var newest time.Time
	for i, e := range events {
		if e.FindingID != findingID {
			continue
		}
		if idx == -1 || e.Timestamp.After(newest) {
			idx = i
			newest = e.Timestamp
		}
	}
	if idx == -1 {
		return &adapter.ErrNotFound{Kind: "finding", ID: findingID}
	}

	now := time.Now()
	events[idx].IsFalsePositive = true
	events[idx].ReviewedBy = reviewedBy
	events[idx].SuppressionTicket = ticket
	events[idx].ReviewedAt = &now

	return s.save(events)
}

// GetWindowByCount returns the most recent n events for ruleID.
func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (domain.FPWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load()
	if err != nil {
		return domain.FPWindow{}, err
	}

	matching := filterByRule(events, ruleID)
	sort.Slice(matching, func(i, j int) bool { return matching[i].Timestamp.After(matching[j].Timestamp) })
	if n > 0 && len(matching) > n {
		matching = matching[:n]
	}

	return domain.ComputeFPWindow(ruleID, matching), nil
}

// GetWindowBySince returns events for ruleID at or after since.
func (s *FPStore) GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (domain.FPWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load()
	if err != nil {
		return domain.FPWindow{}, err
	}

	matching := filterByRule(events, ruleID)
	filtered := matching[:0]
	for _, e := range matching {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}

	return domain.ComputeFPWindow(ruleID, filtered), nil
}

// IsFalsePositive reports whether findingID has been reviewed and
// confirmed a false positive for ruleID.
func (s *FPStore) IsFalsePositive(ctx context.Context, ruleID, findingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load()
	if err != nil {
		return false, err
	}
	for _, e := range events {
		if e.RuleID == ruleID && e.FindingID == findingID {
			return e.IsFalsePositive, nil
		}
	}
	return false, &adapter.ErrNotFound{Kind: "finding", ID: findingID}
}

func filterByRule(events []domain.FPEvent, ruleID string) []domain.FPEvent {
	out := make([]domain.FPEvent, 0, len(events))
	for _, e := range events {
		if e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	return out
}

var _ adapter.FPStoreAdapter = (*FPStore)(nil)
