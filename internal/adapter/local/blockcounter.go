package local

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// blockCounterEntryTTL is how long a bucket lives past its first
// increment before lazy cleanup reclaims it.
const blockCounterEntryTTL = 7200 * time.Second

// blockCounterBucket is one hourly (rule, org) bucket on disk.
type blockCounterBucket struct {
	Key       string `json:"key"`
	Count     int64  `json:"count"`
	ExpiresAt int64  `json:"expiresAt"`
}

// BlockCounter is the file-backed BlockCounterAdapter. Buckets are
// keyed by domain.BlockCounterBucketKey(ruleID, orgID, hourEpoch), so
// rolling a new hour never requires resetting any state.
type BlockCounter struct {
	mu    sync.Mutex
	path  string
	clock func() time.Time
}

// NewBlockCounter opens (or creates) the block-counter collection
// under dataDir.
func NewBlockCounter(dataDir string) (*BlockCounter, error) {
	return &BlockCounter{path: filepath.Join(dataDir, "block-counter.json"), clock: time.Now}, nil
}

func (c *BlockCounter) load() ([]blockCounterBucket, error) {
	buckets := make([]blockCounterBucket, 0)
	if err := readJSONArray(c.path, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// loadLive loads the bucket collection and lazily drops any bucket past
// its expiresAt, persisting the trimmed collection so expired hourly
// buckets don't accumulate in block-counter.json indefinitely. Returns
// the live buckets only; callers that mutate and save do so on this
// already-cleaned slice.
func (c *BlockCounter) loadLive() ([]blockCounterBucket, error) {
	buckets, err := c.load()
	if err != nil {
		return nil, err
	}

	now := c.clock().Unix()
	live := buckets[:0]
	expired := false
	for _, b := range buckets {
		if b.ExpiresAt != 0 && b.ExpiresAt <= now {
			expired = true
			continue
		}
		live = append(live, b)
	}
	if expired {
		if err := c.save(live); err != nil {
			return nil, err
		}
	}
	return live, nil
}

func (c *BlockCounter) save(buckets []blockCounterBucket) error {
	return writeJSONArrayAtomic(c.path, buckets)
}

func (c *BlockCounter) hourEpoch() int64 {
	return c.clock().Unix() / 3600
}

// Increment bumps the current hour's bucket for (ruleID, orgID) and
// returns the new count.
func (c *BlockCounter) Increment(ctx context.Context, ruleID, orgID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())

	buckets, err := c.loadLive()
	if err != nil {
		return 0, err
	}

	for i, b := range buckets {
		if b.Key == key {
			buckets[i].Count++
			if err := c.save(buckets); err != nil {
				return 0, err
			}
			return buckets[i].Count, nil
		}
	}

	// First touch for this hour's bucket: set expiresAt so it is lazily
	// reclaimed on a later access once the hour has rolled past.
	buckets = append(buckets, blockCounterBucket{
		Key:       key,
		Count:     1,
		ExpiresAt: c.clock().Unix() + int64(blockCounterEntryTTL.Seconds()),
	})
	if err := c.save(buckets); err != nil {
		return 0, err
	}
	return 1, nil
}

// GetCount returns the current hour's count for (ruleID, orgID).
func (c *BlockCounter) GetCount(ctx context.Context, ruleID, orgID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())

	buckets, err := c.loadLive()
	if err != nil {
		return 0, err
	}
	for _, b := range buckets {
		if b.Key == key {
			return b.Count, nil
		}
	}
	return 0, nil
}

// IsCircuitBroken reports whether the current hour's count for
// (ruleID, orgID) has reached threshold.
func (c *BlockCounter) IsCircuitBroken(ctx context.Context, ruleID, orgID string, threshold int64) (bool, error) {
	count, err := c.GetCount(ctx, ruleID, orgID)
	if err != nil {
		return false, err
	}
	return count >= threshold, nil
}

var _ adapter.BlockCounterAdapter = (*BlockCounter)(nil)
