package awsadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// baselineVersionMetaKey is the object metadata header PutBaseline
// bumps on every write, since S3 has no first-class version counter
// without bucket versioning, which this adapter doesn't assume is
// enabled.
const baselineVersionMetaKey = "oracle-baseline-version"

// BaselineStore is the S3-backed BaselineStoreAdapter; each key maps
// to one object.
type BaselineStore struct {
	client *s3.Client
	bucket string
	cfg    Config
}

func (s *BaselineStore) GetBaseline(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.baseline.get"), func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &noSuchKey) {
				return &adapter.ErrNotFound{Kind: "baseline", ID: key}
			}
			return fmt.Errorf("awsadapter: get baseline object: %w", err)
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("awsadapter: read baseline body: %w", err)
		}
		return nil
	})
	return data, err
}

func (s *BaselineStore) currentVersion(ctx context.Context, key string) int {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0
	}
	v, _ := strconv.Atoi(resp.Metadata[baselineVersionMetaKey])
	return v
}

func (s *BaselineStore) PutBaseline(ctx context.Context, key string, data []byte) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.baseline.put"), func() error {
		next := s.currentVersion(ctx, key) + 1
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			Body:     bytes.NewReader(data),
			Metadata: map[string]string{baselineVersionMetaKey: strconv.Itoa(next)},
		})
		if err != nil {
			return fmt.Errorf("awsadapter: put baseline object: %w", err)
		}
		return nil
	})
}

func (s *BaselineStore) ListBaselines(ctx context.Context) ([]domain.BaselineListing, error) {
	var listings []domain.BaselineListing
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.baseline.list"), func() error {
		listings = nil
		var token *string
		for {
			resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				ContinuationToken: token,
			})
			if err != nil {
				return fmt.Errorf("awsadapter: list baseline objects: %w", err)
			}
			for _, obj := range resp.Contents {
				modified := time.Time{}
				if obj.LastModified != nil {
					modified = *obj.LastModified
				}
				key := aws.ToString(obj.Key)
				listings = append(listings, domain.BaselineListing{
					Key:        key,
					Version:    s.currentVersion(ctx, key),
					ModifiedAt: modified,
				})
			}
			if !aws.ToBool(resp.IsTruncated) {
				sort.Slice(listings, func(i, j int) bool {
					return listings[i].ModifiedAt.After(listings[j].ModifiedAt)
				})
				return nil
			}
			token = resp.NextContinuationToken
		}
	})
	return listings, err
}

func (s *BaselineStore) DeleteBaseline(ctx context.Context, key string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.baseline.delete"), func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("awsadapter: delete baseline object: %w", err)
		}
		return nil
	})
}

var _ adapter.BaselineStoreAdapter = (*BaselineStore)(nil)
