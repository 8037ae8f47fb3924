package semantic

import (
	"context"
	"fmt"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
)

// BlockCounterService wraps BlockCounterAdapter with the circuit-
// breaker check/increment sequencing the orchestrator needs: check
// before deciding, increment only after a block actually happens, per
// spec.md §4.G steps 4 and 6.
type BlockCounterService struct {
	store     adapter.BlockCounterAdapter
	threshold int64
}

// NewBlockCounterService wraps store with the circuit-breaker threshold.
func NewBlockCounterService(store adapter.BlockCounterAdapter, threshold int64) *BlockCounterService {
	return &BlockCounterService{store: store, threshold: threshold}
}

// IsTripped reports whether (ruleID, orgID)'s current hourly bucket has
// reached the configured threshold.
func (s *BlockCounterService) IsTripped(ctx context.Context, ruleID, orgID string) (bool, error) {
	tripped, err := s.store.IsCircuitBroken(ctx, ruleID, orgID, s.threshold)
	if err != nil {
		return false, fmt.Errorf("semantic: is circuit broken: %w", err)
	}
	return tripped, nil
}

// RecordBlock increments (ruleID, orgID)'s hourly bucket after a block
// decision has actually been made.
func (s *BlockCounterService) RecordBlock(ctx context.Context, ruleID, orgID string) error {
	if _, err := s.store.Increment(ctx, ruleID, orgID); err != nil {
		return fmt.Errorf("semantic: increment block counter: %w", err)
	}
	return nil
}
