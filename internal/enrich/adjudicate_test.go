package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/anthropic"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

func TestAdjudicate(t *testing.T) {
	lead := model.Lead{CompanyName: "Acme Widgets Inc", Email: "jane@acme.com", City: "New York", Country: "US"}
	candidates := []orbis.Match{
		{BvDID: "US_A", Name: "ACME WIDGETS INC", Score: 0.92},
		{BvDID: "US_B", Name: "ACME WIDGET HOLDINGS", Score: 0.90},
	}

	t.Run("parses a verdict", func(t *testing.T) {
		ai := &fakeAI{fn: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			assert.Nil(t, req.WebSearch)
			assert.Contains(t, req.Messages[0].Content, `"tentative_bvd_id":"US_A"`)
			assert.Contains(t, req.Messages[0].Content, `"email_domain":"acme.com"`)

			return textResponse(`{"bvd_id":"US_B","reasoning":"holdings entity owns the registered domain"}`), nil
		}}

		verdict, err := NewAdjudicator(ai, AdjudicatorConfig{}).Adjudicate(context.Background(), lead, nil, candidates, candidates[0])
		require.NoError(t, err)

		assert.Equal(t, "US_B", verdict.BvDID)
		assert.Contains(t, verdict.Reasoning, "holdings entity")
	})

	t.Run("tolerates code fences", func(t *testing.T) {
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("```json\n{\"bvd_id\": null, \"reasoning\": \"no candidate convincing\"}\n```"), nil
		}}

		verdict, err := NewAdjudicator(ai, AdjudicatorConfig{}).Adjudicate(context.Background(), lead, nil, candidates, candidates[0])
		require.NoError(t, err)

		assert.Empty(t, verdict.BvDID)
		assert.Contains(t, verdict.Reasoning, "no candidate")
	})

	t.Run("transient failure is retried once", func(t *testing.T) {
		attempts := 0
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			attempts++
			return nil, resilience.NewTransientError(assert.AnError, 529)
		}}

		_, err := NewAdjudicator(ai, AdjudicatorConfig{}).Adjudicate(context.Background(), lead, nil, candidates, candidates[0])
		require.Error(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("unparseable verdict is an error", func(t *testing.T) {
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("I could not decide."), nil
		}}

		_, err := NewAdjudicator(ai, AdjudicatorConfig{}).Adjudicate(context.Background(), lead, nil, candidates, candidates[0])
		require.Error(t, err)
	})
}
