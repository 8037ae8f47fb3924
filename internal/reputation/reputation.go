// Package reputation models the ReputationEngine capability the
// calibration pipeline depends on: per-org contribution weights and an
// asynchronous consistency-score write-back.
//
// No ecosystem SDK exists for a spec-defined, organization-internal
// reputation RPC, so Engine is backed by a thin net/http JSON client,
// the same shape as wisbric-nightowl's pkg/bookowl/client.go: one
// http.Client, one timeout, hand-marshalled request/response structs.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// Engine is the capability the calibration pipeline depends on.
type Engine interface {
	CalculateContributionWeight(ctx context.Context, orgIDHash string) (domain.ContributorWeight, error)
	UpdateConsistencyScore(ctx context.Context, orgIDHash string, delta float64) error
}

// Client is an Engine backed by an internal HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outbound calls at rps requests per second with the
// given burst, protecting the reputation engine from a calibration run
// that fans out a per-org weight lookup for every distinct contributor
// in a single rule's window.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New builds a Client calling baseURL with the given timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter admits one more call; a nil
// limiter (the default) never blocks.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("reputation: rate limit wait: %w", err)
	}
	return nil
}

// CalculateContributionWeight fetches orgIDHash's current weight.
func (c *Client) CalculateContributionWeight(ctx context.Context, orgIDHash string) (domain.ContributorWeight, error) {
	if err := c.wait(ctx); err != nil {
		return domain.ContributorWeight{}, err
	}

	url := fmt.Sprintf("%s/v1/reputation/%s/weight", c.baseURL, orgIDHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ContributorWeight{}, fmt.Errorf("reputation: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ContributorWeight{}, fmt.Errorf("reputation: calling reputation engine: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.ContributorWeight{}, fmt.Errorf("reputation: engine returned HTTP %d", resp.StatusCode)
	}

	var weight domain.ContributorWeight
	if err := json.NewDecoder(resp.Body).Decode(&weight); err != nil {
		return domain.ContributorWeight{}, fmt.Errorf("reputation: decoding response: %w", err)
	}
	return weight, nil
}

type consistencyScoreUpdate struct {
	Delta float64 `json:"delta"`
}

// UpdateConsistencyScore applies delta to orgIDHash's consistency score.
func (c *Client) UpdateConsistencyScore(ctx context.Context, orgIDHash string, delta float64) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(consistencyScoreUpdate{Delta: delta})
	if err != nil {
		return fmt.Errorf("reputation: marshalling update: %w", err)
	}

	url := fmt.Sprintf("%s/v1/reputation/%s/consistency-score", c.baseURL, orgIDHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reputation: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reputation: calling reputation engine: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("reputation: engine returned HTTP %d", resp.StatusCode)
	}
	return nil
}

var _ Engine = (*Client)(nil)
