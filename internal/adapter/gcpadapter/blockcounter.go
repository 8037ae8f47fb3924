package gcpadapter

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

type blockCounterDoc struct {
	Count int64
}

// BlockCounter is the Firestore-backed BlockCounterAdapter. Increment
// runs inside a transaction so concurrent Oracle instances incrementing
// the same (rule, org, hour) bucket never lose an update.
type BlockCounter struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
	cfg        Config
	clock      func() time.Time
}

func (c *BlockCounter) hourEpoch() int64 {
	return c.clock().Unix() / 3600
}

func (c *BlockCounter) Increment(ctx context.Context, ruleID, orgID string) (int64, error) {
	key := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())
	var count int64
	err := resilience.WithRetry(ctx, c.cfg.retryPolicy("gcp.blockcounter.increment"), func() error {
		docRef := c.collection.Doc(firestoreSafeKey(key))
		err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(docRef)
			current := int64(0)
			if err == nil {
				var existing blockCounterDoc
				if derr := snap.DataTo(&existing); derr == nil {
					current = existing.Count
				}
			} else if status.Code(err) != codes.NotFound {
				return err
			}
			count = current + 1
			return tx.Set(docRef, blockCounterDoc{Count: count})
		})
		if err != nil {
			return fmt.Errorf("gcpadapter: increment block counter: %w", err)
		}
		return nil
	})
	return count, err
}

func (c *BlockCounter) GetCount(ctx context.Context, ruleID, orgID string) (int64, error) {
	key := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())
	var count int64
	err := resilience.WithRetry(ctx, c.cfg.retryPolicy("gcp.blockcounter.get_count"), func() error {
		snap, err := c.collection.Doc(firestoreSafeKey(key)).Get(ctx)
		if status.Code(err) == codes.NotFound {
			count = 0
			return nil
		}
		if err != nil {
			return fmt.Errorf("gcpadapter: get block counter: %w", err)
		}
		var doc blockCounterDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("gcpadapter: decode block counter: %w", err)
		}
		count = doc.Count
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
