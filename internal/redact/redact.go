// Package redact implements the cryptographic redaction core: HMAC-SHA256
// branded text with multi-version nonce grace-period validation.
//
// Grounded on internal/config/sanitizer.go's field-redaction idiom (what
// gets masked and why) and on the HMAC-branded payload shape from
// other_examples' securemessage.go, combined with the nonce.Cache this
// package consumes for key material.
package redact

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/nonce"
)

// brandLabel is the fixed HMAC message branding every RedactedText with
// its version, distinguishing "this text was redacted by us" from an
// attacker-supplied MAC over arbitrary bytes.
const brandLabel = "PHASE_MIRROR_REDACTED"

// ErrNoValidNonce is returned by Redact when the cache holds no
// unexpired nonce to key the HMAC with.
var ErrNoValidNonce = nonce.ErrNoValidNonce

// ErrStructurallyInvalid is returned by Validate/Verify when the
// candidate RedactedText is missing required fields before any nonce
// comparison is attempted.
var ErrStructurallyInvalid = fmt.Errorf("redact: candidate is structurally invalid")

func hmacHex(key, message []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// constantTimeEqualHex compares two hex strings for equality without
// leaking timing information about where they diverge. Mismatched
// lengths return false immediately without comparing contents, which is
// itself safe because length is not considered confidential here (the
// trailing comparison is the sensitive part, per spec.md §4.B).
func constantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Redact picks the latest valid nonce from cache, applies each pattern
// globally and in order while counting hits, then brands and MACs the
// result with HMAC-SHA256 keyed by that nonce's value.
func Redact(cache *nonce.Cache, input string, patterns []domain.RedactionPattern) (domain.RedactedText, error) {
	latest, err := cache.GetLatest()
	if err != nil {
		return domain.RedactedText{}, ErrNoValidNonce
	}

	value := input
	hits := 0
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return domain.RedactedText{}, fmt.Errorf("redact: invalid pattern %q: %w", p.Pattern, err)
		}
		value = re.ReplaceAllStringFunc(value, func(match string) string {
			hits++
			return p.Replacement
		})
	}

	key := []byte(latest.Value)
	return domain.RedactedText{
		Brand:         hmacHex(key, []byte(brandLabel)),
		MAC:           hmacHex(key, []byte(value)),
		NonceVersion:  latest.Version,
		Value:         value,
		RedactionHits: hits,
	}, nil
}

func structurallyValid(candidate domain.RedactedText) bool {
	return candidate.Brand != "" && candidate.MAC != "" && candidate.NonceVersion != 0
}

// Validate checks the candidate's structure, then tries every cached
// unexpired nonce version for a brand match. Grace-period compliant: a
// RedactedText produced under version v continues to validate as long
// as v remains in the cache.
func Validate(cache *nonce.Cache, candidate domain.RedactedText) bool {
	if !structurallyValid(candidate) {
		return false
	}
	for _, entry := range cache.GetValid() {
		expectedBrand := hmacHex([]byte(entry.Value), []byte(brandLabel))
		if constantTimeEqualHex(expectedBrand, candidate.Brand) {
			return true
		}
	}
	return false
}

// Verify checks the candidate's structure, then tries every cached
// unexpired nonce version, recomputing the expected MAC over the
// original text. Unlike Validate, Verify authenticates that the
// candidate's MAC matches a specific plaintext, not just that some
// cached nonce produced the brand.
func Verify(cache *nonce.Cache, candidate domain.RedactedText, originalText string) bool {
	if !structurallyValid(candidate) {
		return false
	}
	for _, entry := range cache.GetValid() {
		expectedMAC := hmacHex([]byte(entry.Value), []byte(originalText))
		if constantTimeEqualHex(expectedMAC, candidate.MAC) {
			return true
		}
	}
	return false
}
