package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-enrich/internal/model"
)

func TestBuildResearchQuery(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("corporate domain is passed as a hint", func(t *testing.T) {
		q := BuildResearchQuery(model.Lead{
			Name:        "John Doe",
			CompanyName: "Acme Widgets Inc",
			Email:       "john@ACME.com",
			City:        "Copenhagen",
			Country:     "Denmark",
		}, policy)

		assert.Equal(t, "Acme Widgets Inc", q.Name)
		assert.Equal(t, "acme.com", q.Domain)
		assert.Equal(t, "Copenhagen", q.City)
		assert.Equal(t, "Denmark", q.Country)
		assert.Equal(t, "John Doe", q.Representative)
	})

	t.Run("free mail domain is withheld", func(t *testing.T) {
		q := BuildResearchQuery(model.Lead{
			CompanyName: "Wildwine Ltd",
			Email:       "owner@gmail.com",
		}, policy)
		assert.Empty(t, q.Domain)
	})
}

func TestMatchDomain(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name     string
		lead     model.Lead
		research *model.CompanyResearchResult
		want     string
	}{
		{
			name:     "lead email domain wins",
			lead:     model.Lead{Email: "a@acme.com"},
			research: &model.CompanyResearchResult{Domain: "other.com"},
			want:     "acme.com",
		},
		{
			name:     "free mail falls back to research",
			lead:     model.Lead{Email: "a@gmail.com"},
			research: &model.CompanyResearchResult{Domain: "https://www.wildwine.je"},
			want:     "wildwine.je",
		},
		{
			name: "free mail and no research",
			lead: model.Lead{Email: "a@gmail.com"},
			want: "",
		},
		{
			name:     "research domain also free mail",
			lead:     model.Lead{Email: "a@yahoo.com"},
			research: &model.CompanyResearchResult{Domain: "hotmail.com"},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchDomain(tt.lead, tt.research, policy))
		})
	}
}
