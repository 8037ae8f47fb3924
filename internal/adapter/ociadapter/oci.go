// Package ociadapter implements the six storage contracts in
// internal/adapter on top of Oracle Cloud Infrastructure's NoSQL
// Database, Object Storage and Vault services. Grounded on the same
// local-adapter shapes as internal/adapter/awsadapter and
// internal/adapter/gcpadapter, with every network call wrapped in
// internal/core/resilience.WithRetry.
package ociadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/common/auth"
	"github.com/oracle/oci-go-sdk/v65/nosql"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/oracle/oci-go-sdk/v65/secrets"
	"github.com/oracle/oci-go-sdk/v65/vault"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

// Config carries the resource identifiers every adapter in this
// package needs, shared across all six stores built from one New call.
type Config struct {
	CompartmentID          string
	VaultID                string
	VaultKeyID             string
	ObjectStorageNamespace string
	FPTable                string
	ConsentTable           string
	BlockCounterTable      string
	CalibrationTable       string
	BaselineBucket         string
	RetryMaxAttempts       int
}

func (c Config) retryPolicy(operation string) *resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	policy.MaxRetries = c.RetryMaxAttempts
	policy.OperationName = operation
	policy.ErrorChecker = &nonRetryableChecker{fallback: &resilience.DefaultErrorChecker{}}
	return policy
}

// configProvider prefers instance principals (the Oracle's usual home,
// a compute instance or container running inside the tenancy) and
// falls back to the local ~/.oci/config file used in development.
func configProvider() (common.ConfigurationProvider, error) {
	if cp, err := auth.InstancePrincipalConfigurationProvider(); err == nil {
		return cp, nil
	}
	return common.DefaultConfigProvider(), nil
}

// New builds NoSQL, Object Storage, Secrets and Vault clients from the
// ambient OCI credentials and returns a fully populated
// adapter.ProviderSet.
func New(ctx context.Context, cfg Config) (adapter.ProviderSet, error) {
	cp, err := configProvider()
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("ociadapter: configuration provider: %w", err)
	}

	nosqlClient, err := nosql.NewNosqlClientWithConfigurationProvider(cp)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("ociadapter: nosql client: %w", err)
	}

	osClient, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(cp)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("ociadapter: object storage client: %w", err)
	}

	secretsClient, err := secrets.NewSecretsClientWithConfigurationProvider(cp)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("ociadapter: secrets client: %w", err)
	}

	vaultsClient, err := vault.NewVaultsClientWithConfigurationProvider(cp)
	if err != nil {
		return adapter.ProviderSet{}, fmt.Errorf("ociadapter: vaults client: %w", err)
	}

	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 3
	}

	return adapter.ProviderSet{
		FPStore:      &FPStore{client: nosqlClient, table: cfg.FPTable, cfg: cfg},
		BlockCounter: &BlockCounter{client: nosqlClient, table: cfg.BlockCounterTable, cfg: cfg, clock: time.Now},
		ConsentStore: &ConsentStore{client: nosqlClient, table: cfg.ConsentTable, cfg: cfg},
		SecretStore: &SecretStore{
			secrets: secretsClient,
			vaults:  vaultsClient,
			cfg:     cfg,
		},
		BaselineStore:    &BaselineStore{client: osClient, cfg: cfg},
		CalibrationStore: &CalibrationStore{client: nosqlClient, table: cfg.CalibrationTable, cfg: cfg},
	}, nil
}
