package local

import "github.com/phasemirror/dissonance-oracle/internal/adapter"

// New builds the full local ProviderSet rooted at dataDir, one JSON
// collection file per store family.
func New(dataDir string) (adapter.ProviderSet, error) {
	fpStore, err := NewFPStore(dataDir)
	if err != nil {
		return adapter.ProviderSet{}, err
	}
	blockCounter, err := NewBlockCounter(dataDir)
	if err != nil {
		return adapter.ProviderSet{}, err
	}
	consentStore, err := NewConsentStore(dataDir)
	if err != nil {
		return adapter.ProviderSet{}, err
	}
	secretStore, err := NewSecretStore(dataDir)
	if err != nil {
		return adapter.ProviderSet{}, err
	}
	baselineStore, err := NewBaselineStore(dataDir)
	if err != nil {
		return adapter.ProviderSet{}, err
	}
	calibrationStore, err := NewCalibrationStore(dataDir)
	if err != nil {
		return adapter.ProviderSet{}, err
	}

	return adapter.ProviderSet{
		FPStore:          fpStore,
		BlockCounter:     blockCounter,
		ConsentStore:     consentStore,
		SecretStore:      secretStore,
		BaselineStore:    baselineStore,
		CalibrationStore: calibrationStore,
	}, nil
}
