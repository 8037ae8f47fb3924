// Package domain holds the shared data model consumed by every other
// internal package (l0, redact, nonce, adapter, evaluator, policy,
// oracle, calibration). Keeping the types in one leaf package avoids
// import cycles between those packages.
package domain

// Nonce is the redaction key material bound to a State at evaluation time.
type Nonce struct {
	Value    string `json:"value" validate:"required,len=64,hexadecimal"`
	IssuedAt int64  `json:"issuedAt" validate:"required"`
}

// State is the L0 input: the structural snapshot of a governed transition
// before any rule runs against it. Immutable for the lifetime of one
// evaluation.
type State struct {
	SchemaVersion          string  `json:"schemaVersion" validate:"required"`
	SchemaHash             string  `json:"schemaHash" validate:"required"`
	PermissionBits         uint16  `json:"permissionBits"`
	DriftMagnitude         float64 `json:"driftMagnitude" validate:"gte=0,lte=1"`
	Nonce                  Nonce   `json:"nonce" validate:"required"`
	ContractionWitnessScore *float64 `json:"contractionWitnessScore,omitempty"`
}
