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

type blockCounterRow struct {
	BucketKey string `json:"bucketKey"`
	Count     int64  `json:"count"`
}

// BlockCounter is the NoSQL Database-backed BlockCounterAdapter.
// Increment reads the current count and writes it back with a plain,
// unconditional PutRow; a concurrent writer landing between the read and write loses a count,
// a tradeoff documented here rather than reached for NoSQL's row-level
// CAS support, which this table's schema doesn't expose a version
// column for.
type BlockCounter struct {
	client *nosql.NosqlClient
	table  string
	cfg    Config
	clock  func() time.Time
}

func (c *BlockCounter) hourEpoch() int64 {
	return c.clock().Unix() / 3600
}

func (c *BlockCounter) getRow(ctx context.Context, bucketKey string) (*blockCounterRow, error) {
	resp, err := c.client.GetRow(ctx, nosql.GetRowRequest{
		TableNameOrId: common.String(c.table),
		CompartmentId: common.String(c.cfg.CompartmentID),
		Key:           []string{keyPart("bucketKey", bucketKey)},
	})
	if err != nil {
		return nil, fmt.Errorf("ociadapter: get block counter row: %w", err)
	}
	if resp.Value == nil {
		return nil, nil
	}
	var row blockCounterRow
	if err := fromRowValue(resp.Value, &row); err != nil {
		return nil, fmt.Errorf("ociadapter: decode block counter row: %w", err)
	}
	return &row, nil
}

func (c *BlockCounter) Increment(ctx context.Context, ruleID, orgID string) (int64, error) {
	bucketKey := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())
	var count int64
	err := resilience.WithRetry(ctx, c.cfg.retryPolicy("oci.blockcounter.increment"), func() error {
		existing, err := c.getRow(ctx, bucketKey)
		if err != nil {
			return err
		}
		count = 1
		if existing != nil {
			count = existing.Count + 1
		}
		value, err := toRowValue(blockCounterRow{BucketKey: bucketKey, Count: count})
		if err != nil {
			return fmt.Errorf("ociadapter: marshal block counter row: %w", err)
		}
		_, err = c.client.PutRow(ctx, nosql.PutRowRequest{
			TableNameOrId: common.String(c.table),
			PutRowDetails: nosql.PutRowDetails{
				CompartmentId: common.String(c.cfg.CompartmentID),
				Value:         value,
			},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: put block counter row: %w", err)
		}
		return nil
	})
	return count, err
}

func (c *BlockCounter) GetCount(ctx context.Context, ruleID, orgID string) (int64, error) {
	bucketKey := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())
	var count int64
	err := resilience.WithRetry(ctx, c.cfg.retryPolicy("oci.blockcounter.get_count"), func() error {
		row, err := c.getRow(ctx, bucketKey)
		if err != nil {
			return err
		}
		if row != nil {
			count = row.Count
		}
		return nil
	})
	return count, err
}

func (c *BlockCounter) IsCircuitBroken(ctx context.Context, ruleID, orgID string, threshold int64) (bool, error) {
	count, err := c.GetCount(ctx, ruleID, orgID)
	if err != nil {
		return false, err
	}
	return count >= threshold, nil
}

var _ adapter.BlockCounterAdapter = (*BlockCounter)(nil)
