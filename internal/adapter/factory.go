package adapter

import (
	"fmt"
)

// Builders is the set of constructor functions each provider package
// registers with the factory. cmd/oracle wires concrete builders from
// internal/adapter/local, awsadapter, gcpadapter and ociadapter; tests
// can substitute fakes directly.
type Builders struct {
	Local  func() (ProviderSet, error)
	AWS    func() (ProviderSet, error)
	GCP    func() (ProviderSet, error)
	Oracle func() (ProviderSet, error)
}

// NewProviderSet selects a ProviderSet by provider enum, no reflection.
// Mirrors internal/storage/factory.go's profile switch, generalized
// from two storage profiles to four adapter providers.
func NewProviderSet(provider Provider, builders Builders) (ProviderSet, error) {
	switch provider {
	case ProviderLocal:
		if builders.Local == nil {
			return ProviderSet{}, fmt.Errorf("adapter: no local builder registered")
		}
		return builders.Local()
	case ProviderAWS:
		if builders.AWS == nil {
			return ProviderSet{}, fmt.Errorf("adapter: no aws builder registered")
		}
		return builders.AWS()
	case ProviderGCP:
		if builders.GCP == nil {
			return ProviderSet{}, fmt.Errorf("adapter: no gcp builder registered")
		}
		return builders.GCP()
	case ProviderOracle:
		if builders.Oracle == nil {
			return ProviderSet{}, fmt.Errorf("adapter: no oracle builder registered")
		}
		return builders.Oracle()
	default:
		return ProviderSet{}, fmt.Errorf("adapter: unknown provider %q", provider)
	}
}
