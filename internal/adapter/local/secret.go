package local

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
)

var secretVersionRe = regexp.MustCompile(`v(\d+)$`)

// secretEntry is one named secret value on disk, e.g. a single nonce
// version ("oracle-nonce-v3" -> hex value).
type secretEntry struct {
	ParamName string `json:"paramName"`
	Value     string `json:"value"`
}

// SecretStore is the file-backed SecretStoreAdapter, standing in for a
// cloud secret manager / parameter store. RotateNonce appends a new
// versioned entry rather than overwriting, so the nonce cache's grace
// window (redact.Validate trying every cached version) has something
// to retrieve during rotation.
type SecretStore struct {
	mu   sync.Mutex
	path string
}

// NewSecretStore opens (or creates) the secret collection under dataDir.
func NewSecretStore(dataDir string) (*SecretStore, error) {
	return &SecretStore{path: filepath.Join(dataDir, "secrets.json")}, nil
}

func (s *SecretStore) load() ([]secretEntry, error) {
	entries := make([]secretEntry, 0)
	if err := readJSONArray(s.path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SecretStore) save(entries []secretEntry) error {
	return writeJSONArrayAtomic(s.path, entries)
}

// GetNonce returns the value stored for paramName.
func (s *SecretStore) GetNonce(ctx context.Context, paramName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.ParamName == paramName {
			return e.Value, nil
		}
	}
	return "", &adapter.ErrNotFound{Kind: "secret", ID: paramName}
}

// RotateNonce appends newValue under the next version name, leaving
// prior versions in place for the grace period.
func (s *SecretStore) RotateNonce(ctx context.Context, newValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	next := 1
	for _, e := range entries {
		m := secretVersionRe.FindStringSubmatch(e.ParamName)
		if m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v >= next {
			next = v + 1
		}
	}

	entries = append(entries, secretEntry{
		ParamName: fmt.Sprintf("oracle-nonce-v%d", next),
		Value:     newValue,
	})
	return s.save(entries)
}

// IsReachable always reports true: the local provider has no network
// dependency to fail.
func (s *SecretStore) IsReachable(ctx context.Context) bool {
	return true
}

var _ adapter.SecretStoreAdapter = (*SecretStore)(nil)
