// Package awsadapter implements the six storage contracts in
// internal/adapter on top of DynamoDB, S3 and Secrets Manager.
// Grounded on internal/adapter/local's file-backed shapes (same table
// layouts, generalized from one JSON array per store to one DynamoDB
// table per store) and wrapped in internal/core/resilience.WithRetry
// since every call crosses the network.
package awsadapter

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

// Config carries the resource identifiers and retry knobs every
// adapter in this package needs. One Config is shared across all six
// stores built from the same New call.
type Config struct {
	Region                string
	Endpoint              string
	FPTableName           string
	ConsentTableName      string
	BlockCounterTableName string
	CalibrationTableName  string
	BaselineBucket        string
	RetryMaxAttempts      int
}

func (c Config) retryPolicy(operation string) *resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	policy.MaxRetries = c.RetryMaxAttempts
	policy.OperationName = operation
	policy.ErrorChecker = &nonRetryableChecker{fallback: &resilience.DefaultErrorChecker{}}
	return policy
}

// New resolves the default AWS credential chain, builds one client per
// service, and returns a fully populated adapter.ProviderSet.
func New(ctx context.Context, cfg Config) (adapter.ProviderSet, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("awsadapter: loading AWS config: %w", err)
	}

	endpointOpt := func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	}
	s3EndpointOpt := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	}
	smEndpointOpt := func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	}

	ddb := dynamodb.NewFromConfig(awsCfg, endpointOpt)
	s3Client := s3.NewFromConfig(awsCfg, s3EndpointOpt)
	smClient := secretsmanager.NewFromConfig(awsCfg, smEndpointOpt)

	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 3
	}

	return adapter.ProviderSet{
		FPStore:          &FPStore{ddb: ddb, table: cfg.FPTableName, cfg: cfg},
		BlockCounter:     &BlockCounter{ddb: ddb, table: cfg.BlockCounterTableName, cfg: cfg, clock: time.Now},
		ConsentStore:     &ConsentStore{ddb: ddb, table: cfg.ConsentTableName, cfg: cfg},
		SecretStore:      &SecretStore{client: smClient, cfg: cfg},
		BaselineStore:    &BaselineStore{client: s3Client, bucket: cfg.BaselineBucket, cfg: cfg},
		CalibrationStore: &CalibrationStore{ddb: ddb, table: cfg.CalibrationTableName, cfg: cfg},
	}, nil
}
