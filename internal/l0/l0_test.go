package l0

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func validState(now time.Time) domain.State {
	return domain.State{
		SchemaVersion:  "1.0",
		SchemaHash:     PinnedSchemaHashV1,
		PermissionBits: 0x0FFF,
		DriftMagnitude: 0.2,
		Nonce: domain.Nonce{
			Value:    "aa0000000000000000000000000000000000000000000000000000000000000a",
			IssuedAt: now.Add(-1 * time.Minute).UnixMilli(),
		},
	}
}

func TestCheck_PassesOnValidState(t *testing.T) {
	now := time.Now()
	result := Check(validState(now), now)
	require.True(t, result.Passed)
	assert.Empty(t, result.FailedChecks)
}

func TestCheck_RejectsReservedPermissionBits(t *testing.T) {
	now := time.Now()
	state := validState(now)
	state.PermissionBits = 0xF000
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckPermissionBits)
}

func TestCheck_RejectsDriftAboveBound(t *testing.T) {
	now := time.Now()
	state := validState(now)
	state.DriftMagnitude = 0.31
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckDriftBounds)
}

func TestCheck_RejectsStaleNonce(t *testing.T) {
	now := time.Now()
	state := validState(now)
	state.Nonce.IssuedAt = now.Add(-2 * time.Hour).UnixMilli()
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckNonceAgeFormat)
}

func TestCheck_RejectsMalformedNonceHex(t *testing.T) {
	now := time.Now()
	state := validState(now)
	state.Nonce.Value = "not-hex"
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckNonceAgeFormat)
}

func TestCheck_RejectsSchemaHashMissing(t *testing.T) {
	now := time.Now()
	state := validState(now)
	state.SchemaHash = ""
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckSchemaHash)
}

func TestCheck_RejectsAnyMutationOfSchemaHash(t *testing.T) {
	now := time.Now()
	state := validState(now)
	require.True(t, Check(state, now).Passed)

	// A different, equally well-formed hex-64 hash must still fail: the
	// check compares against the pinned value, not just non-emptiness.
	state.SchemaHash = strings.Repeat("0", 64)
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckSchemaHash)
}

func TestCheck_RejectsUnregisteredSchemaVersion(t *testing.T) {
	now := time.Now()
	state := validState(now)
	state.SchemaVersion = "2.0"
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckSchemaHash)
}

func TestCheck_WitnessScoreMustBeExactlyOne(t *testing.T) {
	now := time.Now()
	state := validState(now)
	bad := 0.99
	state.ContractionWitnessScore = &bad
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, CheckWitnessScore)

	good := 1.0
	state.ContractionWitnessScore = &good
	result = Check(state, now)
	assert.True(t, result.Passed)
}

func TestCheck_ReportsAllFailingChecksTogether(t *testing.T) {
	now := time.Now()
	state := domain.State{
		SchemaHash:     "",
		PermissionBits: 0xFFFF,
		DriftMagnitude: 1.0,
		Nonce:          domain.Nonce{Value: "bad"},
	}
	result := Check(state, now)
	require.False(t, result.Passed)
	assert.ElementsMatch(t, []CheckName{
		CheckSchemaHash, CheckPermissionBits, CheckDriftBounds, CheckNonceAgeFormat,
	}, result.FailedChecks)
	violations := result.Violations()
	assert.Len(t, violations, 4)
}
