package ociadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
)

type alwaysRetryable struct{}

func (alwaysRetryable) IsRetryable(error) bool { return true }

func TestNonRetryableChecker_SentinelsAreTerminal(t *testing.T) {
	checker := &nonRetryableChecker{fallback: alwaysRetryable{}}

	assert.False(t, checker.IsRetryable(&adapter.ErrNotFound{Kind: "secret", ID: "x"}))
	assert.False(t, checker.IsRetryable(&adapter.ErrDuplicate{EventID: "evt-1"}))
	assert.True(t, checker.IsRetryable(resilience.ErrNonRetryable))
}

func TestNextVersionedName_SkipsExisting(t *testing.T) {
	taken := map[string]bool{"oracle-nonce-v1": true, "oracle-nonce-v2": true, "oracle-nonce-v3": true}
	name := nextVersionedName(func(n string) bool { return taken[n] })
	assert.Equal(t, "oracle-nonce-v4", name)
}

type rowFixture struct {
	RuleID string  `json:"ruleId"`
	Count  int     `json:"count"`
	Rate   float64 `json:"rate"`
}

func TestRowValueRoundTrip(t *testing.T) {
	in := rowFixture{RuleID: "MD-001", Count: 3, Rate: 0.75}

	m, err := toRowValue(in)
	require.NoError(t, err)
	assert.Equal(t, "MD-001", m["ruleId"])

	var out rowFixture
	require.NoError(t, fromRowValue(m, &out))
	assert.Equal(t, in, out)
}

func TestKeyPart(t *testing.T) {
	assert.Equal(t, `orgId:"org-1"`, keyPart("orgId", "org-1"))
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `"MD-001"`, quoteLiteral("MD-001"))
	assert.Equal(t, `"has \"quotes\""`, quoteLiteral(`has "quotes"`))
}
