package ociadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// baselineVersionMetaKey mirrors awsadapter's and gcpadapter's
// object-metadata version counters, since Object Storage has no
// first-class per-object counter.
const baselineVersionMetaKey = "oracle-baseline-version"

// BaselineStore is the Object Storage-backed BaselineStoreAdapter.
type BaselineStore struct {
	client *objectstorage.ObjectStorageClient
	cfg    Config
}

func (s *BaselineStore) GetBaseline(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.baseline.get"), func() error {
		resp, err := s.client.GetObject(ctx, objectstorage.GetObjectRequest{
			NamespaceName: common.String(s.cfg.ObjectStorageNamespace),
			BucketName:    common.String(s.cfg.BaselineBucket),
			ObjectName:    common.String(key),
		})
		if isNotFound(err) {
			return &adapter.ErrNotFound{Kind: "baseline", ID: key}
		}
		if err != nil {
			return fmt.Errorf("ociadapter: get baseline object: %w", err)
		}
		defer resp.Content.Close()
		data, err = io.ReadAll(resp.Content)
		if err != nil {
			return fmt.Errorf("ociadapter: read baseline body: %w", err)
		}
		return nil
	})
	return data, err
}

func (s *BaselineStore) currentVersion(ctx context.Context, key string) int {
	resp, err := s.client.HeadObject(ctx, objectstorage.HeadObjectRequest{
		NamespaceName: common.String(s.cfg.ObjectStorageNamespace),
		BucketName:    common.String(s.cfg.BaselineBucket),
		ObjectName:    common.String(key),
	})
	if err != nil {
		return 0
	}
	v, _ := strconv.Atoi(resp.OpcMeta[baselineVersionMetaKey])
	return v
}

func (s *BaselineStore) PutBaseline(ctx context.Context, key string, data []byte) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.baseline.put"), func() error {
		next := s.currentVersion(ctx, key) + 1
		_, err := s.client.PutObject(ctx, objectstorage.PutObjectRequest{
			NamespaceName: common.String(s.cfg.ObjectStorageNamespace),
			BucketName:    common.String(s.cfg.BaselineBucket),
			ObjectName:    common.String(key),
			PutObjectBody: io.NopCloser(bytes.NewReader(data)),
			ContentLength: common.Int64(int64(len(data))),
			OpcMeta:       map[string]string{baselineVersionMetaKey: strconv.Itoa(next)},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: put baseline object: %w", err)
		}
		return nil
	})
}

func (s *BaselineStore) ListBaselines(ctx context.Context) ([]domain.BaselineListing, error) {
	var listings []domain.BaselineListing
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.baseline.list"), func() error {
		listings = nil
		var page *string
		for {
			resp, err := s.client.ListObjects(ctx, objectstorage.ListObjectsRequest{
				NamespaceName: common.String(s.cfg.ObjectStorageNamespace),
				BucketName:    common.String(s.cfg.BaselineBucket),
				Fields:        common.String("name,timeModified"),
				Start:         page,
			})
			if err != nil {
				return fmt.Errorf("ociadapter: list baseline objects: %w", err)
			}
			for _, obj := range resp.Objects {
				if obj.Name == nil {
					continue
				}
				version := s.currentVersion(ctx, *obj.Name)
				modified := domain.BaselineListing{Key: *obj.Name, Version: version}
				if obj.TimeModified != nil {
					modified.ModifiedAt = obj.TimeModified.Time
				}
				listings = append(listings, modified)
			}
			if resp.NextStartWith == nil {
				sort.Slice(listings, func(i, j int) bool {
					return listings[i].ModifiedAt.After(listings[j].ModifiedAt)
				})
				return nil
			}
			page = resp.NextStartWith
		}
	})
	return listings, err
}

func (s *BaselineStore) DeleteBaseline(ctx context.Context, key string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.baseline.delete"), func() error {
		_, err := s.client.DeleteObject(ctx, objectstorage.DeleteObjectRequest{
			NamespaceName: common.String(s.cfg.ObjectStorageNamespace),
			BucketName:    common.String(s.cfg.BaselineBucket),
			ObjectName:    common.String(key),
		})
		if isNotFound(err) {
			return &adapter.ErrNotFound{Kind: "baseline", ID: key}
		}
		if err != nil {
			return fmt.Errorf("ociadapter: delete baseline object: %w", err)
		}
		return nil
	})
}

var _ adapter.BaselineStoreAdapter = (*BaselineStore)(nil)
