package local

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// baselineEntry stores baseline bytes inline (base64 via JSON's default
// []byte encoding) rather than as a separate file per key, keeping the
// local provider to one file per store family.
type baselineEntry struct {
	Key        string    `json:"key"`
	Version    int       `json:"version"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Data       []byte    `json:"data"`
}

// BaselineStore is the file-backed BaselineStoreAdapter.
type BaselineStore struct {
	mu   sync.Mutex
	path string
}

// NewBaselineStore opens (or creates) the baseline collection under dataDir.
func NewBaselineStore(dataDir string) (*BaselineStore, error) {
	return &BaselineStore{path: filepath.Join(dataDir, "baselines.json")}, nil
}

func (s *BaselineStore) load() ([]baselineEntry, error) {
	entries := make([]baselineEntry, 0)
	if err := readJSONArray(s.path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BaselineStore) save(entries []baselineEntry) error {
	return writeJSONArrayAtomic(s.path, entries)
}

// GetBaseline returns the stored bytes for key.
func (s *BaselineStore) GetBaseline(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Key == key {
			return e.Data, nil
		}
	}
	return nil, &adapter.ErrNotFound{Kind: "baseline", ID: key}
}

// PutBaseline writes or replaces the bytes stored for key, bumping its
// version counter by one.
func (s *BaselineStore) PutBaseline(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	now := time.Now()

	for i, e := range entries {
		if e.Key == key {
			entries[i] = baselineEntry{Key: key, Version: e.Version + 1, ModifiedAt: now, Data: data}
			return s.save(entries)
		}
	}
	entries = append(entries, baselineEntry{Key: key, Version: 1, ModifiedAt: now, Data: data})
	return s.save(entries)
}

// ListBaselines returns key/version/modifiedAt metadata for every
// stored baseline, most-recently modified first, without their data
// payloads.
func (s *BaselineStore) ListBaselines(ctx context.Context) ([]domain.BaselineListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	listings := make([]domain.BaselineListing, 0, len(entries))
	for _, e := range entries {
		listings = append(listings, domain.BaselineListing{Key: e.Key, Version: e.Version, ModifiedAt: e.ModifiedAt})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ModifiedAt.After(listings[j].ModifiedAt) })
	return listings, nil
}

// DeleteBaseline removes the entry stored for key.
func (s *BaselineStore) DeleteBaseline(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Key == key {
			entries = append(entries[:i], entries[i+1:]...)
			return s.save(entries)
		}
	}
	return &adapter.ErrNotFound{Kind: "baseline", ID: key}
}

var _ adapter.BaselineStoreAdapter = (*BaselineStore)(nil)
