package gcpadapter

import (
	"context"
	"errors"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

// SecretStore is the Secret Manager-backed SecretStoreAdapter.
// RotateNonce creates a brand new secret named by the next version
// suffix, matching the local/AWS adapters' append-only versioned-name
// scheme rather than adding a version to an existing secret, so the
// nonce cache's grace-window lookups behave identically across
// providers.
type SecretStore struct {
	client    *secretmanager.Client
	projectID string
	cfg       Config
}

func (s *SecretStore) secretPath(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, name)
}

func (s *SecretStore) GetNonce(ctx context.Context, paramName string) (string, error) {
	var value string
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.secret.get_nonce"), func() error {
		resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: s.secretPath(paramName) + "/versions/latest",
		})
		if status.Code(err) == codes.NotFound {
			return &adapter.ErrNotFound{Kind: "secret", ID: paramName}
		}
		if err != nil {
			return fmt.Errorf("gcpadapter: access secret version: %w", err)
		}
		value = string(resp.Payload.Data)
		return nil
	})
	return value, err
}

func (s *SecretStore) exists(ctx context.Context, name string) bool {
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: s.secretPath(name)})
	return err == nil
}

func (s *SecretStore) RotateNonce(ctx context.Context, newValue string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("gcp.secret.rotate_nonce"), func() error {
		name := nextVersionedName(func(n string) bool { return s.exists(ctx, n) })
		secret, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: name,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("gcpadapter: create secret %s: %w", name, err)
		}
		_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
			Parent:  secret.Name,
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(newValue)},
		})
		if err != nil {
			return fmt.Errorf("gcpadapter: add secret version to %s: %w", name, err)
		}
		return nil
	})
}

func (s *SecretStore) IsReachable(ctx context.Context) bool {
	it := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   fmt.Sprintf("projects/%s", s.projectID),
		PageSize: 1,
	})
	_, err := it.Next()
	return err == nil || errors.Is(err, iterator.Done)
}

var _ adapter.SecretStoreAdapter = (*SecretStore)(nil)
