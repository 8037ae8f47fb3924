package gcpadapter

import (
	"errors"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
)

// nonRetryableChecker treats this package's own sentinel errors as
// permanent, deferring everything else to the fallback checker's
// network/timeout heuristics.
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
