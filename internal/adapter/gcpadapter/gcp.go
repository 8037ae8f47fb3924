// Package gcpadapter implements the six storage contracts in
// internal/adapter on top of Firestore, Cloud Storage and Secret
// Manager. Grounded on the same local-adapter shapes as
// internal/adapter/awsadapter, swapping DynamoDB/S3/Secrets Manager for
// their GCP equivalents, with every network call wrapped in
// internal/core/resilience.WithRetry.
package gcpadapter

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

// Config carries the resource identifiers every adapter in this
// package needs, shared across all six stores built from one New call.
type Config struct {
	ProjectID             string
	FPCollection          string
	ConsentCollection     string
	BlockCounterCollection string
	CalibrationCollection string
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

func collectionName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// New builds a Firestore client, a Secret Manager client and a Cloud
// Storage client from application-default credentials, and returns a
// fully populated adapter.ProviderSet.
func New(ctx context.Context, cfg Config) (adapter.ProviderSet, error) {
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("gcpadapter: firestore client: %w", err)
	}

	smClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("gcpadapter: secretmanager client: %w", err)
	}

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("gcpadapter: storage client: %w", err)
	}

	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 3
	}

	return adapter.ProviderSet{
		FPStore: &FPStore{
			collection: fsClient.Collection(collectionName(cfg.FPCollection, "fpEvents")),
			cfg:        cfg,
		},
		BlockCounter: &BlockCounter{
			client:     fsClient,
			collection: fsClient.Collection(collectionName(cfg.BlockCounterCollection, "blockCounters")),
			cfg:        cfg,
			clock:      time.Now,
		},
		ConsentStore: &ConsentStore{
			collection: fsClient.Collection(collectionName(cfg.ConsentCollection, "consent")),
			cfg:        cfg,
		},
		SecretStore: &SecretStore{
			client:    smClient,
			projectID: cfg.ProjectID,
			cfg:       cfg,
		},
		BaselineStore: &BaselineStore{
			bucket: gcsClient.Bucket(cfg.BaselineBucket),
			cfg:    cfg,
		},
		CalibrationStore: &CalibrationStore{
			collection: fsClient.Collection(collectionName(cfg.CalibrationCollection, "calibrationResults")),
			cfg:        cfg,
		},
	}, nil
}
