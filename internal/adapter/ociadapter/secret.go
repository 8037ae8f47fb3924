package ociadapter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/secrets"
	"github.com/oracle/oci-go-sdk/v65/vault"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

// SecretStore reads from the Secrets data-plane client and rotates
// through the Vaults control-plane client. RotateNonce creates a
// brand new secret named by the next version suffix, matching the
// local/AWS/GCP adapters' append-only versioned-name scheme rather
// than adding a version to an existing secret, so the nonce cache's
// grace-window lookups behave identically across providers.
type SecretStore struct {
	secrets *secrets.SecretsClient
	vaults  *vault.VaultsClient
	cfg     Config
}

func (s *SecretStore) GetNonce(ctx context.Context, paramName string) (string, error) {
	var value string
	err := resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.secret.get_nonce"), func() error {
		resp, err := s.secrets.GetSecretBundleByName(ctx, secrets.GetSecretBundleByNameRequest{
			SecretName: common.String(paramName),
			VaultId:    common.String(s.cfg.VaultID),
			Stage:      secrets.GetSecretBundleByNameStageLatest,
		})
		if isNotFound(err) {
			return &adapter.ErrNotFound{Kind: "secret", ID: paramName}
		}
		if err != nil {
			return fmt.Errorf("ociadapter: get secret bundle: %w", err)
		}
		content, ok := resp.SecretBundleContent.(secrets.Base64SecretBundleContentDetails)
		if !ok || content.Content == nil {
			return fmt.Errorf("ociadapter: secret %s has no base64 content", paramName)
		}
		decoded, err := base64.StdEncoding.DecodeString(*content.Content)
		if err != nil {
			return fmt.Errorf("ociadapter: decode secret bundle: %w", err)
		}
		value = string(decoded)
		return nil
	})
	return value, err
}

func (s *SecretStore) secretExists(ctx context.Context, name string) bool {
	_, err := s.secrets.GetSecretBundleByName(ctx, secrets.GetSecretBundleByNameRequest{
		SecretName: common.String(name),
		VaultId:    common.String(s.cfg.VaultID),
		Stage:      secrets.GetSecretBundleByNameStageLatest,
	})
	return err == nil
}

func (s *SecretStore) RotateNonce(ctx context.Context, newValue string) error {
	return resilience.WithRetry(ctx, s.cfg.retryPolicy("oci.secret.rotate_nonce"), func() error {
		name := nextVersionedName(func(n string) bool { return s.secretExists(ctx, n) })
		encoded := base64.StdEncoding.EncodeToString([]byte(newValue))
		_, err := s.vaults.CreateSecret(ctx, vault.CreateSecretRequest{
			CreateSecretDetails: vault.CreateSecretDetails{
				CompartmentId: common.String(s.cfg.CompartmentID),
				VaultId:       common.String(s.cfg.VaultID),
				KeyId:         common.String(s.cfg.VaultKeyID),
				SecretName:    common.String(name),
				SecretContent: vault.Base64SecretContentDetails{
					Content: common.String(encoded),
				},
			},
		})
		if err != nil {
			return fmt.Errorf("ociadapter: create secret %s: %w", name, err)
		}
		return nil
	})
}

func (s *SecretStore) IsReachable(ctx context.Context) bool {
	_, err := s.secrets.GetSecretBundleByName(ctx, secrets.GetSecretBundleByNameRequest{
		SecretName: common.String("oracle-reachability-probe"),
		VaultId:    common.String(s.cfg.VaultID),
		Stage:      secrets.GetSecretBundleByNameStageLatest,
	})
	return err == nil || isNotFound(err)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var svcErr common.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.GetHTTPStatusCode() == 404
	}
	return false
}

var _ adapter.SecretStoreAdapter = (*SecretStore)(nil)
