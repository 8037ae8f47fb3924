package gcpadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// ConsentStore is the Firestore-backed ConsentStoreAdapter, one
// document per (orgId, feature) holding the latest grant/revoke state.
type ConsentStore struct {
	collection *firestore.CollectionRef
	cfg        Config
}

func consentDocID(orgID, feature string) string {
	return firestoreSafeKey(orgID) + "_" + firestoreSafeKey(feature)
}

func (s *ConsentStore) getConsent(ctx context.Context, orgID, feature string) (*domain.Consent, error) {
	snap, err := s.collection.Doc(consentDocID(orgID, feature)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gcpadapter: get consent: %w", err)
	}
	var c domain.Consent
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("gcpadapter: decode consent: %w", err)
	}
	return &c, nil
}

func (s *ConsentStore) CheckResourceConsent(ctx context.Context, orgID, feature string) (bool, error) {
	var holds bool
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.consent.check"), func() error {
		c, err := s.getConsent(ctx, orgID, feature)
		if err != nil {
			return err
		}
		holds = c != nil && c.Holds(time.Now(), "")
		return nil
	})
	return holds, err
}

func (s *ConsentStore) GrantConsent(ctx context.Context, orgID, feature, grantor string, expiresAt *time.Time) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.consent.grant"), func() error {
		c := domain.Consent{
			OrgID:     orgID,
			Feature:   feature,
			Granted:   true,
			GrantedAt: time.Now(),
			GrantedBy: grantor,
			ExpiresAt: expiresAt,
		}
		_, err := s.collection.Doc(consentDocID(orgID, feature)).Set(ctx, c)
		if err != nil {
			return fmt.Errorf("gcpadapter: put consent: %w", err)
		}
		return nil
	})
}

func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID, feature, revoker string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.consent.revoke"), func() error {
		c, err := s.getConsent(ctx, orgID, feature)
		if err != nil {
			return err
		}
		if c == nil {
			return &adapter.ErrNotFound{Kind: "consent", ID: orgID + ":" + feature}
		}
		now := time.Now()
		c.RevokedAt = &now
		c.RevokedBy = revoker
		_, err = s.collection.Doc(consentDocID(orgID, feature)).Set(ctx, c)
		if err != nil {
			return fmt.Errorf("gcpadapter: revoke consent: %w", err)
		}
		return nil
	})
}

func (s *ConsentStore) listByOrg(ctx context.Context, orgID string) ([]domain.Consent, error) {
	var out []domain.Consent
	iter := s.collection.Where("OrgID", "==", orgID).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gcpadapter: query consent: %w", err)
		}
		var c domain.Consent
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("gcpadapter: decode consent: %w", err)
		}
		out = append(out, c)
	}
}

func (s *ConsentStore) GetConsentSummary(ctx context.Context, orgID string) (domain.ConsentSummary, error) {
	var summary domain.ConsentSummary
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.consent.summary"), func() error {
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
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.consent.check_multiple"), func() error {
		now := time.Now()
		for _, feature := range features {
			c, err := s.getConsent(ctx, orgID, feature)
			if err != nil {
				return err
			}
			result[feature] = c != nil && c.Holds(now, "")
		}
		return nil
	})
	return result, err
}

var _ adapter.ConsentStoreAdapter = (*ConsentStore)(nil)
