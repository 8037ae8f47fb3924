package awsadapter

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// CalibrationStore is the DynamoDB-backed CalibrationStoreAdapter,
// keyed by ruleId, one item per rule's latest consensus result.
type CalibrationStore struct {
	ddb   *dynamodb.Client
	table string
	cfg   Config
}

func (s *CalibrationStore) StoreCalibrationResult(ctx context.Context, result domain.CalibrationResultExtended) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.calibration.store"), func() error {
		_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      calibrationToItem(result),
		})
		if err != nil {
			return fmt.Errorf("awsadapter: put calibration result: %w", err)
		}
		return nil
	})
}

func (s *CalibrationStore) GetCalibrationResult(ctx context.Context, ruleID string) (domain.CalibrationResultExtended, error) {
	var result domain.CalibrationResultExtended
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.calibration.get"), func() error {
		resp, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.table),
			Key:       map[string]types.AttributeValue{"ruleId": attrS(ruleID)},
		})
		if err != nil {
			return fmt.Errorf("awsadapter: get calibration result: %w", err)
		}
		if resp.Item == nil {
			return &adapter.ErrNotFound{Kind: "calibration", ID: ruleID}
		}
		result = itemToCalibration(resp.Item)
		return nil
	})
	return result, err
}

func (s *CalibrationStore) GetAllCalibrationResults(ctx context.Context) ([]domain.CalibrationResultExtended, error) {
	var results []domain.CalibrationResultExtended
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.calibration.get_all"), func() error {
		results = nil
		var exclusiveStart map[string]types.AttributeValue
		for {
			resp, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
				TableName:         aws.String(s.table),
				ExclusiveStartKey: exclusiveStart,
			})
			if err != nil {
				return fmt.Errorf("awsadapter: scan calibration results: %w", err)
			}
			for _, item := range resp.Items {
				results = append(results, itemToCalibration(item))
			}
			if len(resp.LastEvaluatedKey) == 0 {
				return nil
			}
			exclusiveStart = resp.LastEvaluatedKey
		}
	})
	return results, err
}

var _ adapter.CalibrationStoreAdapter = (*CalibrationStore)(nil)
