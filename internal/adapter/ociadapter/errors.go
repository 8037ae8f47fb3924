package ociadapter

import (
	"errors"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
)

// nonRetryableChecker treats the adapter package's own sentinel errors
// (not-found, duplicate) as permanent, deferring everything else to
// resilience.DefaultErrorChecker's network/timeout heuristics.
type nonRetryableChecker struct {
	fallback interface{ IsRetryable(error) bool }
}

func (c *nonRetryableChecker) IsRetryable(err error) bool {
	var notFound *adapter.ErrNotFound
	var duplicate *adapter.ErrDuplicate
	if errors.As(err, &notFound) || errors.As(err, &duplicate) {
		return false
	}
	return c.fallback.IsRetryable(err)
}
