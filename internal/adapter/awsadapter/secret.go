package awsadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

// SecretStore is the Secrets Manager-backed SecretStoreAdapter.
// RotateNonce creates a brand new secret named by the next version
// suffix rather than rotating an existing secret's versions in place,
// matching the local adapter's append-only versioned-name scheme so
// the nonce cache's grace-window lookups behave identically across
// providers.
type SecretStore struct {
	client *secretsmanager.Client
	cfg    Config
}

func (s *SecretStore) GetNonce(ctx context.Context, paramName string) (string, error) {
	var value string
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.secret.get_nonce"), func() error {
		resp, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(paramName),
		})
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return &adapter.ErrNotFound{Kind: "secret", ID: paramName}
			}
			return fmt.Errorf("awsadapter: get secret value: %w", err)
		}
		if resp.SecretString != nil {
			value = *resp.SecretString
		}
		return nil
	})
	return value, err
}

func (s *SecretStore) nextVersionName(ctx context.Context) string {
	return nextVersionedName(func(name string) bool {
		_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(name)})
		return err == nil
	})
}

func (s *SecretStore) RotateNonce(ctx context.Context, newValue string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("aws.secret.rotate_nonce"), func() error {
		name := s.nextVersionName(ctx)
		_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(name),
			SecretString: aws.String(newValue),
		})
		if err != nil {
			return fmt.Errorf("awsadapter: create secret version %s: %w", name, err)
		}
		return nil
	})
}

func (s *SecretStore) IsReachable(ctx context.Context) bool {
	_, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: aws.Int32(1)})
	return err == nil
}

var _ adapter.SecretStoreAdapter = (*SecretStore)(nil)
