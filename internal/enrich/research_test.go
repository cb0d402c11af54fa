package enrich

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/anthropic"
)

// fakeAI scripts the reasoning client for research-stage tests.
type fakeAI struct {
	mu    sync.Mutex
	calls int
	fn    func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestResearch(t *testing.T) {
	query := model.CompanyResearchQuery{Name: "Wildwine Ltd", Domain: "wildwine.je", Country: "JE"}

	t.Run("parses consolidated answer", func(t *testing.T) {
		ai := &fakeAI{fn: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			require.NotNil(t, req.WebSearch)
			assert.Equal(t, 6, req.WebSearch.MaxUses)
			assert.Contains(t, req.Messages[0].Content, "wildwine.je")

			return textResponse(`{"name":"WILDWINE LTD","domain":"wildwine.je","city":"St Helier","country":"Jersey","national_id":"JE12345","employee_count":12,"reasoning":"registry hit","sources":["https://registry.je/wildwine"]}`), nil
		}}

		result, err := NewResearcher(ai, ResearchConfig{}).Research(context.Background(), query)
		require.NoError(t, err)

		assert.Equal(t, "WILDWINE LTD", result.Name)
		assert.Equal(t, "JE12345", result.NationalID)
		require.NotNil(t, result.EmployeeCount)
		assert.Equal(t, 12, *result.EmployeeCount)
		assert.Equal(t, []string{"https://registry.je/wildwine"}, result.Sources)
	})

	t.Run("tolerates code fences and narration", func(t *testing.T) {
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("Here is what I found:\n```json\n{\"name\": \"Acme\", \"domain\": \"acme.com\"}\n```"), nil
		}}

		result, err := NewResearcher(ai, ResearchConfig{}).Research(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, "acme.com", result.Domain)
	})

	t.Run("api citations back-fill empty sources", func(t *testing.T) {
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			resp := textResponse(`{"name":"Acme"}`)
			resp.Content = append(resp.Content, anthropic.ContentBlock{
				Type: "text", Text: "", CitedURLs: []string{"https://acme.com/about"},
			})
			return resp, nil
		}}

		result, err := NewResearcher(ai, ResearchConfig{}).Research(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://acme.com/about"}, result.Sources)
	})

	t.Run("unparseable output is an error", func(t *testing.T) {
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("I could not find anything."), nil
		}}

		_, err := NewResearcher(ai, ResearchConfig{}).Research(context.Background(), query)
		assert.Error(t, err)
	})

	t.Run("one retry on transient failure", func(t *testing.T) {
		attempts := 0
		ai := &fakeAI{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			attempts++
			if attempts == 1 {
				return nil, resilience.NewTransientError(assert.AnError, 529)
			}
			return textResponse(`{"name":"Acme"}`), nil
		}}

		result, err := NewResearcher(ai, ResearchConfig{}).Research(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, "Acme", result.Name)
		assert.Equal(t, 2, attempts)
	})
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Sure! {"a":1} Hope that helps.`, `{"a":1}`},
		{"no json", "nothing here", "nothing here"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
