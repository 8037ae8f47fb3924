// Package nonce implements the version-keyed HMAC-key cache consumed by
// internal/redact. Grounded on the in-memory nonce store idiom from
// virtengine's replay-protection package (map-keyed records, TTL-based
// expiry, single-writer mutex), adapted from a replay-protection store
// to a version-keyed secret-material cache per SPEC_FULL.md §4.C.
package nonce

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// DefaultTTL is the nonce lifetime: 1 hour, per spec.md §4.C.
const DefaultTTL = 3_600_000 * time.Millisecond

const minHexLength = 32

var paramVersionRe = regexp.MustCompile(`v(\d+)`)

// ErrNoValidNonce is returned when the cache holds no unexpired entry.
var ErrNoValidNonce = fmt.Errorf("nonce: no valid cached nonce")

// ErrMissingVersionSuffix is returned when loadNonce's paramName has no
// numeric v\d+ suffix to key the cache entry by.
var ErrMissingVersionSuffix = fmt.Errorf("nonce: paramName has no version suffix")

// ErrMalformedNonce is returned when a fetched value is not valid hex or
// is shorter than minHexLength.
var ErrMalformedNonce = fmt.Errorf("nonce: fetched value is not a valid hex secret")

// Fetcher retrieves the current secret value for a parameter name, e.g.
// an adapter.SecretStoreAdapter.GetNonce call.
type Fetcher func(ctx context.Context, paramName string) (string, error)

// Status describes one cache entry's state, for Cache.Status.
type Status = domain.NonceStatus

// Cache is the single-owner, in-process nonce cache. The Oracle
// constructs and owns exactly one Cache for its lifetime; no
// package-level cache variable exists anywhere, per SPEC_FULL.md §9.
type Cache struct {
	mu      sync.RWMutex
	entries map[int]domain.NonceRecord
	ttl     time.Duration
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTL overrides the default 1-hour nonce TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger attaches a structured logger for degraded/failed-closed
// transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithClock overrides the cache's notion of "now", for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) { c.clock = clock }
}

// NewCache constructs an empty, ready-to-use nonce cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[int]domain.NonceRecord),
		ttl:     DefaultTTL,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) now() time.Time {
	return c.clock()
}

func extractVersion(paramName string) (int, error) {
	m := paramVersionRe.FindStringSubmatch(paramName)
	if len(m) != 2 {
		return 0, ErrMissingVersionSuffix
	}
	var version int
	if _, err := fmt.Sscanf(m[1], "%d", &version); err != nil {
		return 0, ErrMissingVersionSuffix
	}
	return version, nil
}

func isHexSecret(s string) bool {
	if len(s) < minHexLength {
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

// LoadNonce extracts the numeric version suffix from paramName, calls
// fetch, and inserts or overwrites the corresponding cache entry.
//
// If fetch fails and at least one unexpired entry remains, the cache
// enters degraded mode: the failure is logged and LoadNonce returns nil.
// If the cache is empty or every entry has expired, the fetcher's error
// is surfaced to the caller (fail-closed).
func (c *Cache) LoadNonce(ctx context.Context, fetch Fetcher, paramName string) error {
	version, err := extractVersion(paramName)
	if err != nil {
		return err
	}

	value, fetchErr := fetch(ctx, paramName)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if fetchErr != nil {
		if c.hasUnexpiredLocked(now) {
			c.logger.Warn("nonce cache degraded: fetch failed, serving cached entries",
				"paramName", paramName, "error", fetchErr)
			return nil
		}
		c.logger.Error("nonce cache failed closed: fetch failed and no valid cache entries",
			"paramName", paramName, "error", fetchErr)
		return fetchErr
	}

	if !isHexSecret(value) {
		return ErrMalformedNonce
	}

	c.entries[version] = domain.NonceRecord{
		Version:  version,
		Value:    value,
		LoadedAt: now.UnixMilli(),
		Source:   paramName,
	}
	return nil
}

func (c *Cache) hasUnexpiredLocked(now time.Time) bool {
	for _, e := range c.entries {
		if c.validLocked(e, now) {
			return true
		}
	}
	return false
}

func (c *Cache) validLocked(e domain.NonceRecord, now time.Time) bool {
	age := now.UnixMilli() - e.LoadedAt
	return age >= 0 && time.Duration(age)*time.Millisecond < c.ttl
}

// GetLatest returns the highest-version unexpired entry.
func (c *Cache) GetLatest() (domain.NonceRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	best, ok := domain.NonceRecord{}, false
	for _, e := range c.entries {
		if !c.validLocked(e, now) {
			continue
		}
		if !ok || e.Version > best.Version {
			best, ok = e, true
		}
	}
	if !ok {
		return domain.NonceRecord{}, ErrNoValidNonce
	}
	return best, nil
}

// GetValid returns every unexpired entry, descending by version.
func (c *Cache) GetValid() []domain.NonceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	var valid []domain.NonceRecord
	for _, e := range c.entries {
		if c.validLocked(e, now) {
			valid = append(valid, e)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Version > valid[j].Version })
	return valid
}

// Evict removes a specific version from the cache.
func (c *Cache) Evict(version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, version)
}

// Clear removes every entry from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]domain.NonceRecord)
}

// Status reports the age and validity of every cache entry, descending
// by version, for introspection and metrics publication.
func (c *Cache) Status() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]Status, 0, len(c.entries))
	for _, e := range c.entries {
		age := now.UnixMilli() - e.LoadedAt
		out = append(out, Status{
			Version: e.Version,
			AgeMs:   age,
			Valid:   c.validLocked(e, now),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}

// State classifies the cache's overall health for metrics publication.
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateFailedClosed
)

// Health reports the cache's aggregate state: healthy if any entry is
// fresh, failed-closed if the cache is empty or every entry has expired.
// Health never reports StateDegraded: only LoadNonce distinguishes
// degraded from failed-closed, at the point of a fetch failure.
func (c *Cache) Health() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return StateFailedClosed
	}
	if c.hasUnexpiredLocked(c.now()) {
		return StateHealthy
	}
	return StateFailedClosed
}
