package ociadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// ConsentStore is the NoSQL Database-backed ConsentStoreAdapter, one
// row per (orgId, feature) holding the latest grant/revoke state.
type ConsentStore struct {
	client *nosql.NosqlClient
	table  string
	cfg    Config
}

func (s *ConsentStore) getConsent(ctx context.Context, orgID, feature string) (*domain.Consent, error) {
	resp, err := s.client.GetRow(ctx, nosql.GetRowRequest{
		TableNameOrId: common.String(s.table),
		CompartmentId: common.String(s.cfg.CompartmentID),
		Key:           []string{keyPart("orgId", orgID), keyPart("feature", feature)},
	})
	if err != nil {
		return nil, fmt.Errorf("ociadapter: get consent row: %w", err)
	}
	if resp.Value == nil {
		return nil, nil
	}
	var c domain.Consent
	if err := fromRowValue(resp.Value, &c); err != nil {
		return nil, fmt.Errorf("ociadapter: decode consent row: %w", err)
	}
	return &c, nil
}

func (s *ConsentStore) putConsent(ctx context.Context, c domain.Consent) error {
	value, err := toRowValue(c)
	if err != nil {
		return fmt.Errorf("ociadapter: marshal consent row: %w", err)
	}
	_, err = s.client.PutRow(ctx, nosql.PutRowRequest{
		TableNameOrId: common.String(s.table),
		PutRowDetails: nosql.PutRowDetails{
			CompartmentId: common.String(s.cfg.CompartmentID),
			Value:         value,
		},
	})
	if err != nil {
		return fmt.Errorf("ociadapter: put consent row: %w", err)
	}
	return nil
}

func (s *ConsentStore) CheckResourceConsent(ctx context.Context, orgID, feature string) (bool, error) {
	var holds bool
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.consent.check"), func() error {
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
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.consent.grant"), func() error {
		return s.putConsent(ctx, domain.Consent{
			OrgID:     orgID,
			Feature:   feature,
			Granted:   true,
			GrantedAt: time.Now(),
			GrantedBy: grantor,
			ExpiresAt: expiresAt,
		})
	})
}

func (s *ConsentStore) RevokeConsent(ctx context.Context, orgID, feature, revoker string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.consent.revoke"), func() error {
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
		return s.putConsent(ctx, *c)
	})
}

func (s *ConsentStore) listByOrg(ctx context.Context, orgID string) ([]domain.Consent, error) {
	var out []domain.Consent
	var page *string
	for {
		resp, err := s.client.Query(ctx, nosql.QueryRequest{
			QueryDetails: nosql.QueryDetails{
				CompartmentId: common.String(s.cfg.CompartmentID),
				Statement:     common.String(fmt.Sprintf("SELECT * FROM %s t WHERE t.orgId = %s", s.table, quoteLiteral(orgID))),
			},
			Page: page,
		})
		if err != nil {
			return nil, fmt.Errorf("ociadapter: query consent rows: %w", err)
		}
		for _, item := range resp.Items {
			var c domain.Consent
			if err := fromRowValue(item, &c); err != nil {
				return nil, fmt.Errorf("ociadapter: decode consent row: %w", err)
			}
			out = append(out, c)
		}
		if resp.OpcNextPage == nil {
			return out, nil
		}
		page = resp.OpcNextPage
	}
}

func (s *ConsentStore) GetConsentSummary(ctx context.Context, orgID string) (domain.ConsentSummary, error) {
	var summary domain.ConsentSummary
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.consent.summary"), func() error {
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
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.consent.check_multiple"), func() error {
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
