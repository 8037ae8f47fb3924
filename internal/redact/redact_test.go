package redact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/nonce"
)

const hex64A = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const hex64B = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func fetcherFor(value string) nonce.Fetcher {
	return func(ctx context.Context, paramName string) (string, error) { return value, nil }
}

func TestRedact_ThenValidate_RoundTrips(t *testing.T) {
	c := nonce.NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fetcherFor(hex64A), "p-v1"))

	redacted, err := Redact(c, "contact secret-token now", []domain.RedactionPattern{
		{Pattern: `secret-\w+`, Replacement: "[R]"},
	})
	require.NoError(t, err)
	assert.Equal(t, "contact [R] now", redacted.Value)
	assert.Equal(t, 1, redacted.RedactionHits)
	assert.True(t, Validate(c, redacted))
}

func TestValidate_FailsOnTampering(t *testing.T) {
	c := nonce.NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fetcherFor(hex64A), "p-v1"))

	redacted, err := Redact(c, "x", nil)
	require.NoError(t, err)

	tamperedValue := redacted
	tamperedValue.Value = "different"
	assert.True(t, Validate(c, tamperedValue), "validate only checks brand, unaffected by value tampering")

	tamperedBrand := redacted
	tamperedBrand.Brand = "00"
	assert.False(t, Validate(c, tamperedBrand))

	tamperedMAC := redacted
	tamperedMAC.MAC = "00"
	assert.False(t, Verify(c, tamperedMAC, "x"))

	tamperedVersion := redacted
	tamperedVersion.NonceVersion = 999
	assert.True(t, Validate(c, tamperedVersion), "version field isn't part of the comparison itself")
}

func TestGracePeriod_PriorVersionValidatesUntilEvicted(t *testing.T) {
	c := nonce.NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fetcherFor(hex64A), "p-v1"))

	r1, err := Redact(c, "secret-token", []domain.RedactionPattern{{Pattern: `secret-\w+`, Replacement: "[R]"}})
	require.NoError(t, err)
	assert.Equal(t, "[R]", r1.Value)
	assert.Equal(t, 1, r1.NonceVersion)

	require.NoError(t, c.LoadNonce(context.Background(), fetcherFor(hex64B), "p-v2"))
	assert.True(t, Validate(c, r1), "v1 still cached, r1 still validates")

	c.Clear()
	require.NoError(t, c.LoadNonce(context.Background(), fetcherFor(hex64B), "p-v2"))

	assert.False(t, Verify(c, r1, "secret-token"), "v1 evicted, MAC can no longer be recomputed")
	assert.False(t, Validate(c, r1), "v1 evicted, brand no longer matches any cached version")

	r2, err := Redact(c, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.NonceVersion, "new redactions use the latest cached version")
}

func TestFailClosed_ExpiredCacheAndUnreachableStore(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := nonce.NewCache(nonce.WithClock(func() time.Time { return clock() }), nonce.WithTTL(time.Minute))
	require.NoError(t, c.LoadNonce(context.Background(), fetcherFor(hex64A), "p-v1"))

	clock = func() time.Time { return now.Add(2 * time.Minute) }

	fetchErr := errors.New("secret store unreachable")
	err := c.LoadNonce(context.Background(), func(ctx context.Context, paramName string) (string, error) {
		return "", fetchErr
	}, "p-v1")
	assert.ErrorIs(t, err, fetchErr)

	_, redactErr := Redact(c, "x", nil)
	assert.ErrorIs(t, redactErr, ErrNoValidNonce)

	assert.False(t, Validate(c, domain.RedactedText{Brand: "anything", MAC: "anything", NonceVersion: 1}))
}
