package semantic

import (
	"context"
	"fmt"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
)

// ConsentService wraps ConsentStoreAdapter with a single Holds check
// callers actually want, rather than the raw grant/revoke primitives.
type ConsentService struct {
	store adapter.ConsentStoreAdapter
}

// NewConsentService wraps store.
func NewConsentService(store adapter.ConsentStoreAdapter) *ConsentService {
	return &ConsentService{store: store}
}

// Holds reports whether orgID currently holds consent for feature.
func (s *ConsentService) Holds(ctx context.Context, orgID, feature string) (bool, error) {
	holds, err := s.store.CheckResourceConsent(ctx, orgID, feature)
	if err != nil {
		return false, fmt.Errorf("semantic: check resource consent: %w", err)
	}
	return holds, nil
}

// HoldsAll reports whether orgID holds consent for every feature in features.
func (s *ConsentService) HoldsAll(ctx context.Context, orgID string, features []string) (bool, error) {
	results, err := s.store.CheckMultipleResources(ctx, orgID, features)
	if err != nil {
		return false, fmt.Errorf("semantic: check multiple resources: %w", err)
	}
	for _, feature := range features {
		if !results[feature] {
			return false, nil
		}
	}
	return true, nil
}
