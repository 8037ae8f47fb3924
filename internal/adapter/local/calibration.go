package local

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// CalibrationStore is the file-backed CalibrationStoreAdapter, one
// entry per ruleID holding its latest consensus result.
type CalibrationStore struct {
	mu   sync.Mutex
	path string
}

// NewCalibrationStore opens (or creates) the calibration collection
// under dataDir.
func NewCalibrationStore(dataDir string) (*CalibrationStore, error) {
	return &CalibrationStore{path: filepath.Join(dataDir, "calibration.json")}, nil
}

func (s *CalibrationStore) load() ([]domain.CalibrationResultExtended, error) {
	results := make([]domain.CalibrationResultExtended, 0)
	if err := readJSONArray(s.path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *CalibrationStore) save(results []domain.CalibrationResultExtended) error {
	return writeJSONArrayAtomic(s.path, results)
}

// StoreCalibrationResult replaces the stored result for result.RuleID.
func (s *CalibrationStore) StoreCalibrationResult(ctx context.Context, result domain.CalibrationResultExtended) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range results {
		if r.RuleID == result.RuleID {
			results[i] = result
			return s.save(results)
		}
	}
	results = append(results, result)
	return s.save(results)
}

// GetCalibrationResult returns the stored result for ruleID.
func (s *CalibrationStore) GetCalibrationResult(ctx context.Context, ruleID string) (domain.CalibrationResultExtended, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load()
	if err != nil {
		return domain.CalibrationResultExtended{}, err
	}
	for _, r := range results {
		if r.RuleID == ruleID {
			return r, nil
		}
	}
	return domain.CalibrationResultExtended{}, &adapter.ErrNotFound{Kind: "calibration", ID: ruleID}
}

// GetAllCalibrationResults returns every stored result.
func (s *CalibrationStore) GetAllCalibrationResults(ctx context.Context) ([]domain.CalibrationResultExtended, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

var _ adapter.CalibrationStoreAdapter = (*CalibrationStore)(nil)
