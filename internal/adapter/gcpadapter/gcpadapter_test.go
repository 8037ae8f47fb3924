package gcpadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

type alwaysRetryable struct{}

func (alwaysRetryable) IsRetryable(error) bool { return true }

func TestNonRetryableChecker_SentinelsAreTerminal(t *testing.T) {
	checker := &nonRetryableChecker{fallback: alwaysRetryable{}}

	assert.False(t, checker.IsRetryable(&adapter.ErrNotFound{Kind: "baseline", ID: "x"}))
	assert.False(t, checker.IsRetryable(&adapter.ErrDuplicate{EventID: "evt-1"}))
	assert.True(t, checker.IsRetryable(resilience.ErrNonRetryable))
}

func TestNextVersionedName_SkipsExisting(t *testing.T) {
	taken := map[string]bool{"oracle-nonce-v1": true}
	name := nextVersionedName(func(n string) bool { return taken[n] })
	assert.Equal(t, "oracle-nonce-v2", name)
}

func TestFirestoreSafeKey(t *testing.T) {
	assert.Equal(t, "org_repo", firestoreSafeKey("org/repo"))
	assert.Equal(t, "plain-key", firestoreSafeKey("plain-key"))
}
