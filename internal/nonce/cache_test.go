package nonce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedFetcher(value string, err error) Fetcher {
	return func(ctx context.Context, paramName string) (string, error) {
		return value, err
	}
}

const hex64A = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const hex64B = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func TestLoadNonce_ExtractsVersionFromParamName(t *testing.T) {
	c := NewCache()
	err := c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "nonce-param-v1")
	require.NoError(t, err)

	latest, err := c.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)
	assert.Equal(t, hex64A, latest.Value)
}

func TestLoadNonce_FailsWithoutVersionSuffix(t *testing.T) {
	c := NewCache()
	err := c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "nonce-param")
	assert.ErrorIs(t, err, ErrMissingVersionSuffix)
}

func TestLoadNonce_RejectsMalformedSecret(t *testing.T) {
	c := NewCache()
	err := c.LoadNonce(context.Background(), fixedFetcher("not-hex", nil), "nonce-param-v1")
	assert.ErrorIs(t, err, ErrMalformedNonce)
}

func TestLoadNonce_DegradedModeOnFetchFailureWithValidCache(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "p-v1"))

	fetchErr := errors.New("secret store unreachable")
	err := c.LoadNonce(context.Background(), fixedFetcher("", fetchErr), "p-v2")
	assert.NoError(t, err, "degraded mode swallows the fetch error while a valid entry remains")

	latest, err := c.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)
}

func TestLoadNonce_FailClosedWhenCacheEmpty(t *testing.T) {
	c := NewCache()
	fetchErr := errors.New("secret store unreachable")
	err := c.LoadNonce(context.Background(), fixedFetcher("", fetchErr), "p-v1")
	assert.ErrorIs(t, err, fetchErr)
}

func TestGetValid_DescendingByVersion(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "p-v1"))
	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64B, nil), "p-v2"))

	valid := c.GetValid()
	require.Len(t, valid, 2)
	assert.Equal(t, 2, valid[0].Version)
	assert.Equal(t, 1, valid[1].Version)
}

func TestCache_ExpiryViaClock(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := NewCache(WithClock(func() time.Time { return clock() }), WithTTL(time.Minute))

	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "p-v1"))

	clock = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := c.GetLatest()
	assert.ErrorIs(t, err, ErrNoValidNonce)
	assert.Equal(t, StateFailedClosed, c.Health())
}

func TestCache_EvictAndClear(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "p-v1"))
	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64B, nil), "p-v2"))

	c.Evict(1)
	assert.Len(t, c.GetValid(), 1)

	c.Clear()
	assert.Empty(t, c.GetValid())
	assert.Equal(t, StateFailedClosed, c.Health())
}

func TestCache_StatusReportsAgeAndValidity(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.LoadNonce(context.Background(), fixedFetcher(hex64A, nil), "p-v1"))

	status := c.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 1, status[0].Version)
	assert.True(t, status[0].Valid)
	assert.GreaterOrEqual(t, status[0].AgeMs, int64(0))
}
