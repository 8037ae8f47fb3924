// Package l0 implements the foundation-tier invariant gate: a single
// allocation-free pass over a domain.State that every other subsystem
// must pass before it is allowed to act on that state.
//
// Grounded on the fixed-order, named-check shape of Project-AI's
// constitutional kernel (other_examples' governance-constitutional.go)
// adapted from a containment-decision gate to a structural state gate.
package l0

import (
	"fmt"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// CheckName identifies one of the five fixed-order L0 checks.
type CheckName string

const (
	CheckSchemaHash      CheckName = "schema_hash"
	CheckPermissionBits  CheckName = "permission_bits"
	CheckDriftBounds     CheckName = "drift_bounds"
	CheckNonceAgeFormat  CheckName = "nonce_age_format"
	CheckWitnessScore    CheckName = "witness_score"
)

// reservedPermissionMask masks the upper 4 bits of the 16-bit permission
// field, which MUST be zero.
const reservedPermissionMask uint16 = 0xF000

// maxDriftMagnitude is the inclusive upper bound on State.DriftMagnitude.
const maxDriftMagnitude = 0.3

// nonceMaxAgeMs is the exclusive upper bound on nonce age, in milliseconds.
const nonceMaxAgeMs int64 = 3_600_000

const hexNonceLength = 64

// PinnedSchemaHashV1 is the content hash schemaVersion "1.0" is pinned to.
const PinnedSchemaHashV1 = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

// expectedSchemaHashes pins the one content hash each known schemaVersion
// is allowed to carry, the same fixed-constant-comparison shape as
// other_examples' conformance-governance.go (VersionSkewPolicySchemaVersionV1
// et al.). A state whose schemaVersion isn't registered here, or whose
// schemaHash doesn't match the registered value, fails CheckSchemaHash —
// this is what makes the check an equality test rather than a presence
// test: any mutation of schemaHash on an otherwise-passing state, even to
// another well-formed hex string, no longer equals the pinned value.
var expectedSchemaHashes = map[string]string{
	"1.0": PinnedSchemaHashV1,
}

// Result is the outcome of one L0.Check call. On the happy path no
// allocation occurs beyond the Result value itself: FailedChecks and
// Violations are left nil and populated only when Passed is false.
type Result struct {
	Passed       bool
	FailedChecks []CheckName
	violations   map[CheckName]string
}

// Violations lazily builds the diagnostic context map for failed checks.
// Only called by integrators after Passed is observed false, keeping the
// happy path allocation-free.
func (r Result) Violations() map[string]string {
	out := make(map[string]string, len(r.violations))
	for k, v := range r.violations {
		out[string(k)] = v
	}
	return out
}

// InvariantViolation is the fatal error an integrator raises on !Passed.
// The offending state MUST NOT be persisted once this is returned.
type InvariantViolation struct {
	FailedChecks []CheckName
	Violations   map[string]string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("L0 invariant violation: failed checks %v", e.FailedChecks)
}

// Check runs the five fixed-order L0 invariants against state as of now.
// It performs no heap allocation on the passing path: failedChecks and
// the violations map are only allocated once a check fails.
func Check(state domain.State, now time.Time) Result {
	var failed []CheckName
	var violations map[CheckName]string

	fail := func(name CheckName, reason string) {
		if violations == nil {
			violations = make(map[CheckName]string, 5)
		}
		failed = append(failed, name)
		violations[name] = reason
	}

	// 1. schema-hash equality: schemaHash must equal the pinned hash for
	// state.schemaVersion, not merely be non-empty. Any mutation away
	// from the registered value, including to another well-formed hash,
	// fails this check.
	if want, ok := expectedSchemaHashes[state.SchemaVersion]; !ok {
		fail(CheckSchemaHash, "schemaVersion is not a registered schema")
	} else if state.SchemaHash != want {
		fail(CheckSchemaHash, "schemaHash does not match the pinned hash for schemaVersion")
	}

	// 2. reserved-permission-bits mask: upper 4 bits must be zero.
	if state.PermissionBits&reservedPermissionMask != 0 {
		fail(CheckPermissionBits, "reserved permission bits (upper 4) are set")
	}

	// 3. drift bounds: driftMagnitude must be in [0, 0.3].
	if state.DriftMagnitude < 0 || state.DriftMagnitude > maxDriftMagnitude {
		fail(CheckDriftBounds, "driftMagnitude outside [0, 0.3]")
	}

	// 4. nonce-age bounds and format: value must be hex-64; age in [0, TTL).
	if !isHex64(state.Nonce.Value) {
		fail(CheckNonceAgeFormat, "nonce value is not hex-64")
	} else {
		ageMs := now.UnixMilli() - state.Nonce.IssuedAt
		if ageMs < 0 || ageMs >= nonceMaxAgeMs {
			fail(CheckNonceAgeFormat, "nonce age outside [0, 3600000)ms")
		}
	}

	// 5. witness score equality: when present, must be exactly 1.0.
	if state.ContractionWitnessScore != nil && *state.ContractionWitnessScore != 1.0 {
		fail(CheckWitnessScore, "contractionWitnessScore present but not exactly 1.0")
	}

	return Result{
		Passed:       len(failed) == 0,
		FailedChecks: failed,
		violations:   violations,
	}
}

func isHex64(s string) bool {
	if len(s) != hexNonceLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
