package ociadapter

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// CalibrationStore is the NoSQL Database-backed CalibrationStoreAdapter,
// one row per ruleID holding its latest consensus result.
type CalibrationStore struct {
	client *nosql.NosqlClient
	table  string
	cfg    Config
}

func (s *CalibrationStore) StoreCalibrationResult(ctx context.Context, result domain.CalibrationResultExtended) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.calibration.store"), func() error {
		value, err := toRowValue(result)
		if err != nil {
			return fmt.Errorf("ociadapter: marshal calibration result: %w", err)
		}
		_, err = s.client.PutRow(ctx, nosql.PutRowRequest{
			TableNameOrId: common.String(s.table),
			PutRowDetails: nosql.PutRowDetails{
				CompartmentId: common.String(s.cfg.CompartmentID),
				Value:         value,
			},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: put calibration result: %w", err)
		}
		return nil
	})
}

func (s *CalibrationStore) GetCalibrationResult(ctx context.Context, ruleID string) (domain.CalibrationResultExtended, error) {
	var result domain.CalibrationResultExtended
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.calibration.get"), func() error {
		resp, err := s.client.GetRow(ctx, nosql.GetRowRequest{
			TableNameOrId: common.String(s.table),
			CompartmentId: common.String(s.cfg.CompartmentID),
			Key:           []string{keyPart("ruleId", ruleID)},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: get calibration result: %w", err)
		}
		if resp.Value == nil {
			return &adapter.ErrNotFound{Kind: "calibration", ID: ruleID}
		}
		if err := fromRowValue(resp.Value, &result); err != nil {
			return fmt.Errorf("ociadapter: decode calibration result: %w", err)
		}
		return nil
	})
	return result, err
}

func (s *CalibrationStore) GetAllCalibrationResults(ctx context.Context) ([]domain.CalibrationResultExtended, error) {
	var results []domain.CalibrationResultExtended
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.calibration.get_all"), func() error {
		results = nil
		var page *string
		for {
			resp, err := s.client.Query(ctx, nosql.QueryRequest{
				QueryDetails: nosql.QueryDetails{
					CompartmentId: common.String(s.cfg.CompartmentID),
					Statement:     common.String(fmt.Sprintf("SELECT * FROM %s", s.table)),
				},
				Page: page,
			})
			if err != nil {
				return fmt.Errorf("ociadapter: list calibration results: %w", err)
			}
			for _, item := range resp.Items {
				var r domain.CalibrationResultExtended
				if err := fromRowValue(item, &r); err != nil {
					return fmt.Errorf("ociadapter: decode calibration result: %w", err)
				}
				results = append(results, r)
			}
			if resp.OpcNextPage == nil {
				return nil
			}
			page = resp.OpcNextPage
		}
	})
	return results, err
}

var _ adapter.CalibrationStoreAdapter = (*CalibrationStore)(nil)
