package local

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// ConsentStore is the file-backed ConsentStoreAdapter.
type ConsentStore struct {
	mu   sync.Mutex
	path string
}

// NewConsentStore opens (or creates) the consent collection under dataDir.
func NewConsentStore(dataDir string) (*ConsentStore, error) {
	return &ConsentStore{path: filepath.Join(dataDir, "consent.json")}, nil
}

func (s *ConsentStore) load() ([]domain.Consent, error) {
	records := make([]domain.Consent, 0)
	if err := readJSONArray(s.path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *ConsentStore) save(records []domain.Consent) error {
	return writeJSONArrayAtomic(s.path, records)
}

func latestConsent(records []domain.Consent, orgID, feature string) (domain.Consent, int) {
	idx := -1
	var newest time.Time
	for i, r := range records {
		if r.OrgID != orgID || r.Feature != feature {
			continue
		}
		if idx == -1 || r.GrantedAt.After(newest) {
			idx = i
			newest = r.GrantedAt
		}
	}
	if idx == -1 {
		return domain.Consent{}, -1
	}
	return records[idx], idx
}

// CheckResourceConsent reports whether orgID currently holds consent
// for feature (not revoked, not expired).
func (s *ConsentStore) CheckResourceConsent(ctx context.Context, orgID, feature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}
	consent, idx := latestConsent(records, orgID, feature)
	if idx == -1 {
		return false, nil
	}
	return consent.Holds(time.Now(), ""), nil
}

// GrantConsent records a new consent grant for (orgID, feature).
func (s *ConsentStore) GrantConsent(ctx context.Context, orgID, feature, grantor string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, domain.Consent{
		OrgID:     orgID,
		Feature:   feature,
		Granted:   true,
		GrantedAt: time.Now(),
		GrantedBy: grantor,
		ExpiresAt: expiresAt,
	})
	return s.save(records)
}

// RevokeConsent marks the latest grant for (orgID, feature) revoked.
func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID, feature, revoker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	_, idx := latestConsent(records, orgID, feature)
	if idx == -1 {
		return &adapter.ErrNotFound{Kind: "consent", ID: orgID + ":" + feature}
	}
	now := time.Now()
	records[idx].RevokedAt = &now
	records[idx].RevokedBy = revoker
	return s.save(records)
}

// GetConsentSummary summarizes all active/revoked grants for orgID.
func (s *ConsentStore) GetConsentSummary(ctx context.Context, orgID string) (domain.ConsentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return domain.ConsentSummary{}, err
	}

	summary := domain.ConsentSummary{OrgID: orgID, ActiveFeatures: []string{}}
	now := time.Now()
	seen := map[string]domain.Consent{}
	for _, r := range records {
		if r.OrgID != orgID {
			continue
		}
		r := r
		prior, ok := seen[r.Feature]
		if !ok || r.GrantedAt.After(prior.GrantedAt) {
			seen[r.Feature] = r
		}
		if summary.LastUpdated == nil || r.GrantedAt.After(*summary.LastUpdated) {
			summary.LastUpdated = &r.GrantedAt
		}
	}
	for feature, r := range seen {
		if r.Holds(now, "") {
			summary.ActiveFeatures = append(summary.ActiveFeatures, feature)
		} else if r.RevokedAt != nil {
			summary.RevokedCount++
		}
	}
	return summary, nil
}

// CheckMultipleResources batches CheckResourceConsent across features.
func (s *ConsentStore) CheckMultipleResources(ctx context.Context, orgID string, features []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := make(map[string]bool, len(features))
	for _, feature := range features {
		consent, idx := latestConsent(records, orgID, feature)
		result[feature] = idx != -1 && consent.Holds(now, "")
	}
	return result, nil
}

var _ adapter.ConsentStoreAdapter = (*ConsentStore)(nil)
