// Package adapter defines the six storage contracts the Oracle depends
// on and a compile-time factory that selects a concrete provider
// implementation. Grounded on internal/storage/factory.go's
// provider-selection switch, generalized from a two-profile
// (lite/standard) storage backend to a four-provider (local/aws/gcp/oci)
// adapter family, with no reflection anywhere in the selection path.
package adapter

import (
	"context"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// Provider is the adapter family selected at construction time.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderAWS    Provider = "aws"
	ProviderGCP    Provider = "gcp"
	ProviderOracle Provider = "oracle"
)

// FaultError is the shared error shape for any persistence operation
// failure, carrying enough context for observability without leaking
// provider-internal details to callers that only branch on Code.
type FaultError struct {
	Code    string
	Source  string
	Context map[string]any
	Cause   error
}

func (e *FaultError) Error() string {
	return "adapter fault [" + e.Code + "] from " + e.Source + ": " + e.Cause.Error()
}

func (e *FaultError) Unwrap() error {
	return e.Cause
}

// ErrDuplicate is returned by FPStoreAdapter.RecordEvent when eventID
// already exists.
type ErrDuplicate struct {
	EventID string
}

func (e *ErrDuplicate) Error() string {
	return "adapter: duplicate event " + e.EventID
}

// ErrNotFound is returned when a lookup by ID finds nothing. Never
// coerced to success by callers.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return "adapter: " + e.Kind + " not found: " + e.ID
}

// FPStoreAdapter persists and queries false-positive review events.
type FPStoreAdapter interface {
	RecordEvent(ctx context.Context, event domain.FPEvent) error
	MarkFalsePositive(ctx context.Context, findingID, reviewedBy, ticket string) error
	GetWindowByCount(ctx context.Context, ruleID string, n int) (domain.FPWindow, error)
	GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (domain.FPWindow, error)
	IsFalsePositive(ctx context.Context, ruleID, findingID string) (bool, error)
}

// BlockCounterAdapter tracks per-(rule, org) hourly circuit-breaker counts.
type BlockCounterAdapter interface {
	Increment(ctx context.Context, ruleID, orgID string) (int64, error)
	GetCount(ctx context.Context, ruleID, orgID string) (int64, error)
	IsCircuitBroken(ctx context.Context, ruleID, orgID string, threshold int64) (bool, error)
}

// ConsentStoreAdapter manages per-org feature consent.
type ConsentStoreAdapter interface {
	CheckResourceConsent(ctx context.Context, orgID, feature string) (bool, error)
	GrantConsent(ctx context.Context, orgID, feature, grantor string, expiresAt *time.Time) error
	RevokeConsent(ctx context.Context, orgID, feature, revoker string) error
	GetConsentSummary(ctx context.Context, orgID string) (domain.ConsentSummary, error)
	CheckMultipleResources(ctx context.Context, orgID string, features []string) (map[string]bool, error)
}

// SecretStoreAdapter backs the nonce cache's Fetcher.
type SecretStoreAdapter interface {
	GetNonce(ctx context.Context, paramName string) (string, error)
	RotateNonce(ctx context.Context, newValue string) error
	IsReachable(ctx context.Context) bool
}

// BaselineStoreAdapter persists opaque versioned baseline blobs.
type BaselineStoreAdapter interface {
	GetBaseline(ctx context.Context, key string) ([]byte, error)
	PutBaseline(ctx context.Context, key string, data []byte) error
	ListBaselines(ctx context.Context) ([]domain.BaselineListing, error)
	DeleteBaseline(ctx context.Context, key string) error
}

// CalibrationStoreAdapter persists calibration results.
type CalibrationStoreAdapter interface {
	StoreCalibrationResult(ctx context.Context, result domain.CalibrationResultExtended) error
	GetCalibrationResult(ctx context.Context, ruleID string) (domain.CalibrationResultExtended, error)
	GetAllCalibrationResults(ctx context.Context) ([]domain.CalibrationResultExtended, error)
}

// ProviderSet bundles the six adapters the Oracle orchestrator wires
// together; every field is populated with an implementation satisfying
// the same provider family.
type ProviderSet struct {
	FPStore     FPStoreAdapter
	BlockCounter BlockCounterAdapter
	ConsentStore ConsentStoreAdapter
	SecretStore SecretStoreAdapter
	BaselineStore BaselineStoreAdapter
	CalibrationStore CalibrationStoreAdapter
}
