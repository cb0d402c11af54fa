package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfidence(t *testing.T) {
	for _, s := range []string{"high", "HIGH", " Medium ", "low", "none"} {
		c, err := ParseConfidence(s)
		require.NoError(t, err, s)
		assert.True(t, c.Valid())
	}

	_, err := ParseConfidence("very_high")
	assert.Error(t, err)
}

func TestConfidenceAtLeast(t *testing.T) {
	assert.True(t, ConfidenceHigh.AtLeast(ConfidenceMedium))
	assert.True(t, ConfidenceMedium.AtLeast(ConfidenceMedium))
	assert.False(t, ConfidenceLow.AtLeast(ConfidenceMedium))
	assert.False(t, ConfidenceNone.AtLeast(ConfidenceLow))
	assert.True(t, ConfidenceNone.AtLeast(ConfidenceNone))
}

func TestMatched(t *testing.T) {
	assert.False(t, (*CompanyMatchResult)(nil).Matched())
	assert.False(t, NoMatch("no directory hit").Matched())
	assert.False(t, (&CompanyMatchResult{BvDID: "GB1", Confidence: ConfidenceNone}).Matched())
	assert.True(t, (&CompanyMatchResult{BvDID: "GB1", Confidence: ConfidenceLow}).Matched())
}

func TestResearchIsEmpty(t *testing.T) {
	assert.True(t, (*CompanyResearchResult)(nil).IsEmpty())
	assert.True(t, (&CompanyResearchResult{Reasoning: "nothing found"}).IsEmpty())
	assert.False(t, (&CompanyResearchResult{Domain: "acme.com"}).IsEmpty())
}
