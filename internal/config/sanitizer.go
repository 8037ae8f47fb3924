package config

import (
	"encoding/json"
	"strings"
)

// ConfigSanitizer redacts sensitive configuration fields before a Config
// is logged. Grounded on the teacher's DefaultConfigSanitizer: deep-copy
// via JSON round-trip, then redact field-by-field.
type ConfigSanitizer interface {
	Sanitize(cfg *Config) *Config
}

// DefaultConfigSanitizer implements ConfigSanitizer.
type DefaultConfigSanitizer struct {
	redactionValue string
}

// NewDefaultConfigSanitizer creates a sanitizer using "***REDACTED***".
func NewDefaultConfigSanitizer() ConfigSanitizer {
	return &DefaultConfigSanitizer{redactionValue: "***REDACTED***"}
}

// NewConfigSanitizer creates a sanitizer with a custom redaction value.
func NewConfigSanitizer(redactionValue string) ConfigSanitizer {
	return &DefaultConfigSanitizer{redactionValue: redactionValue}
}

// Sanitize redacts the reputation client's base URL if it carries
// embedded credentials, and the cloud endpoint override if present
// (a non-empty override is almost always a local test double carrying a
// dev credential in its URL, e.g. a LocalStack endpoint with an
// access-key query string).
func (s *DefaultConfigSanitizer) Sanitize(cfg *Config) *Config {
	sanitized := s.deepCopy(cfg)

	sanitized.Reputation.BaseURL = s.sanitizeURL(sanitized.Reputation.BaseURL)
	sanitized.Cloud.Endpoint = s.sanitizeURL(sanitized.Cloud.Endpoint)

	return sanitized
}

func (s *DefaultConfigSanitizer) deepCopy(cfg *Config) *Config {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}

	var configCopy Config
	if err := json.Unmarshal(configJSON, &configCopy); err != nil {
		return cfg
	}

	return &configCopy
}

// sanitizeURL redacts the userinfo portion of a URL if present, leaving
// the rest of the URL intact for diagnostics.
func (s *DefaultConfigSanitizer) sanitizeURL(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}
	if !strings.Contains(rawURL, "@") {
		return rawURL
	}
	schemeIdx := strings.Index(rawURL, "://")
	if schemeIdx == -1 {
		return s.redactionValue
	}
	hostStart := strings.Index(rawURL[schemeIdx+3:], "@")
	if hostStart == -1 {
		return s.redactionValue
	}
	return rawURL[:schemeIdx+3] + s.redactionValue + rawURL[schemeIdx+3+hostStart:]
}
