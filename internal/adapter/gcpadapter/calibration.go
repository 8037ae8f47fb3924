package gcpadapter

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// CalibrationStore is the Firestore-backed CalibrationStoreAdapter, one
// document per ruleID holding its latest consensus result.
type CalibrationStore struct {
	collection *firestore.CollectionRef
	cfg        Config
}

func (s *CalibrationStore) StoreCalibrationResult(ctx context.Context, result domain.CalibrationResultExtended) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.calibration.store"), func() error {
		_, err := s.collection.Doc(firestoreSafeKey(result.RuleID)).Set(ctx, result)
		if err != nil {
			return fmt.Errorf("gcpadapter: put calibration result: %w", err)
		}
		return nil
	})
}

func (s *CalibrationStore) GetCalibrationResult(ctx context.Context, ruleID string) (domain.CalibrationResultExtended, error) {
	var result domain.CalibrationResultExtended
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.calibration.get"), func() error {
		snap, err := s.collection.Doc(firestoreSafeKey(ruleID)).Get(ctx)
		if status.Code(err) == codes.NotFound {
			return &adapter.ErrNotFound{Kind: "calibration", ID: ruleID}
		}
		if err != nil {
			return fmt.Errorf("gcpadapter: get calibration result: %w", err)
		}
		if err := snap.DataTo(&result); err != nil {
			return fmt.Errorf("gcpadapter: decode calibration result: %w", err)
		}
		return nil
	})
	return result, err
}

func (s *CalibrationStore) GetAllCalibrationResults(ctx context.Context) ([]domain.CalibrationResultExtended, error) {
	var results []domain.CalibrationResultExtended
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.calibration.get_all"), func() error {
		results = nil
		iter := s.collection.Documents(ctx)
		defer iter.Stop()
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("gcpadapter: list calibration results: %w", err)
			}
			var r domain.CalibrationResultExtended
			if err := doc.DataTo(&r); err != nil {
				return fmt.Errorf("gcpadapter: decode calibration result: %w", err)
			}
			results = append(results, r)
		}
	})
	return results, err
}

var _ adapter.CalibrationStoreAdapter = (*CalibrationStore)(nil)
