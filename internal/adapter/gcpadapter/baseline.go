package gcpadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// baselineVersionMetaKey mirrors awsadapter's object-metadata version
// counter, since Cloud Storage objects don't expose one directly
// unless bucket versioning (a bucket-wide, not object, setting) is on.
const baselineVersionMetaKey = "oracle-baseline-version"

// BaselineStore is the Cloud Storage-backed BaselineStoreAdapter.
type BaselineStore struct {
	bucket *storage.BucketHandle
	cfg    Config
}

func (s *BaselineStore) GetBaseline(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.baseline.get"), func() error {
		r, err := s.bucket.Object(key).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return &adapter.ErrNotFound{Kind: "baseline", ID: key}
		}
		if err != nil {
			return fmt.Errorf("gcpadapter: open baseline object: %w", err)
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("gcpadapter: read baseline body: %w", err)
		}
		return nil
	})
	return data, err
}

func (s *BaselineStore) currentVersion(ctx context.Context, key string) int {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return 0
	}
	v, _ := strconv.Atoi(attrs.Metadata[baselineVersionMetaKey])
	return v
}

func (s *BaselineStore) PutBaseline(ctx context.Context, key string, data []byte) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.baseline.put"), func() error {
		next := s.currentVersion(ctx, key) + 1
		w := s.bucket.Object(key).NewWriter(ctx)
		w.Metadata = map[string]string{baselineVersionMetaKey: strconv.Itoa(next)}
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			_ = w.Close()
			return fmt.Errorf("gcpadapter: write baseline object: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("gcpadapter: close baseline writer: %w", err)
		}
		return nil
	})
}

func (s *BaselineStore) ListBaselines(ctx context.Context) ([]domain.BaselineListing, error) {
	var listings []domain.BaselineListing
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.baseline.list"), func() error {
		listings = nil
		it := s.bucket.Objects(ctx, nil)
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				sort.Slice(listings, func(i, j int) bool {
					return listings[i].ModifiedAt.After(listings[j].ModifiedAt)
				})
				return nil
			}
			if err != nil {
				return fmt.Errorf("gcpadapter: list baseline objects: %w", err)
			}
			version, _ := strconv.Atoi(attrs.Metadata[baselineVersionMetaKey])
			listings = append(listings, domain.BaselineListing{
				Key:        attrs.Name,
				Version:    version,
				ModifiedAt: attrs.Updated,
			})
		}
	})
	return listings, err
}

func (s *BaselineStore) DeleteBaseline(ctx context.Context, key string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.baseline.delete"), func() error {
		err := s.bucket.Object(key).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return &adapter.ErrNotFound{Kind: "baseline", ID: key}
		}
		if err != nil {
			return fmt.Errorf("gcpadapter: delete baseline object: %w", err)
		}
		return nil
	})
}

var _ adapter.BaselineStoreAdapter = (*BaselineStore)(nil)
