package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

func TestClient_CalculateContributionWeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reputation/org-hash-1/weight", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.ContributorWeight{OrgIDHash: "org-hash-1", Weight: 0.8, ReputationScore: 0.9})
	}))
	defer server.Close()

	client := New(server.URL, 0)
	weight, err := client.CalculateContributionWeight(context.Background(), "org-hash-1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, weight.Weight)
}

func TestClient_UpdateConsistencyScore(t *testing.T) {
	var receivedDelta float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Delta float64 `json:"delta"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		receivedDelta = body.Delta
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(server.URL, 0)
	err := client.UpdateConsistencyScore(context.Background(), "org-hash-1", 0.05)
	require.NoError(t, err)
	assert.Equal(t, 0.05, receivedDelta)
}

func TestClient_CalculateContributionWeight_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, 0)
	_, err := client.CalculateContributionWeight(context.Background(), "org-hash-1")
	require.Error(t, err)
}

func TestClient_WithRateLimit_ThrottlesCalls(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(domain.ContributorWeight{OrgIDHash: "org-hash-1"})
	}))
	defer server.Close()

	client := New(server.URL, 0, WithRateLimit(1, 1))

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := client.CalculateContributionWeight(context.Background(), "org-hash-1")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.EqualValues(t, 2, calls.Load())
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond, "second call should have waited for the limiter to refill")
}

func TestClient_WithRateLimit_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.ContributorWeight{})
	}))
	defer server.Close()

	client := New(server.URL, 0, WithRateLimit(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.CalculateContributionWeight(ctx, "org-hash-1")
	require.Error(t, err)

	err = client.UpdateConsistencyScore(ctx, "org-hash-1", 0.1)
	require.Error(t, err)
}
