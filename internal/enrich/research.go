package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/anthropic"
)

const researchSystemPrompt = `You are a company research assistant.

You receive a company research query with fields: name, domain, city, country, phone, and representative (the contact person, not the company). Identify the company and extract factual information about it using web search.

Note on domain: the domain is derived from a contact email address and has already been screened against free email providers. If it is present, treat it as strong evidence and visit it first. If it is absent, prioritize finding the official domain from the company name, city, and country.

Note on sparse or ambiguous inputs: if the name is partial or common, or location fields are missing:
- Strictly anchor all searches to the provided country (if given); never research companies in other countries.
- Use the representative name to disambiguate.
- If no reliable source matches the provided country, city, or representative, leave most fields null and explain in reasoning.
- Prefer exact or near-exact matches; never expand or assume full names without evidence.

Critical rules:
- Do not hallucinate. Only fill fields you are confident about based on actual sources.
- If uncertain, leave the field null. Never guess, especially for location; never change country from the input.
- For conflicting information prefer authoritative sources (official website, government registry, LinkedIn) and document the conflict in reasoning.
- national_id is the official national company identifier (company number, CVR, KvK, SIREN, etc.), not a VAT number unless that is the registry identifier.
- The sources list must include every URL you extracted information from.

Respond with exactly one valid JSON object, no narrative text and no code fences:
{"name": string|null, "domain": string|null, "address": string|null, "city": string|null, "postal_code": string|null, "country": string|null, "national_id": string|null, "industry": string|null, "employee_count": int|null, "revenue": string|null, "description": string|null, "reasoning": string|null, "sources": [string]}

Return a single consolidated answer, never multiple candidates. Keep reasoning short.`

// Researcher produces a consolidated company profile for a lead. A nil
// result with a nil error never occurs; failures are returned as errors for
// the orchestrator to absorb.
type Researcher interface {
	Research(ctx context.Context, query model.CompanyResearchQuery) (*model.CompanyResearchResult, error)
}

// ResearchConfig tunes the reasoning call behind the research stage.
type ResearchConfig struct {
	Model            string
	MaxTokens        int64
	WebSearchMaxUses int
	// Timeout bounds a single attempt; one retry is allowed on top.
	Timeout time.Duration
}

func (c ResearchConfig) withDefaults() ResearchConfig {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.WebSearchMaxUses <= 0 {
		c.WebSearchMaxUses = 6
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	return c
}

type claudeResearcher struct {
	ai  anthropic.Client
	cfg ResearchConfig
}

// NewResearcher creates the web-search-backed research stage.
func NewResearcher(ai anthropic.Client, cfg ResearchConfig) Researcher {
	return &claudeResearcher{ai: ai, cfg: cfg.withDefaults()}
}

func (r *claudeResearcher) Research(ctx context.Context, query model.CompanyResearchQuery) (*model.CompanyResearchResult, error) {
	prompt, err := json.Marshal(query)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal research query")
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "research")

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		return r.ai.CreateMessage(attemptCtx, anthropic.MessageRequest{
			Model:     r.cfg.Model,
			MaxTokens: r.cfg.MaxTokens,
			System:    []anthropic.SystemBlock{{Text: researchSystemPrompt}},
			Messages: []anthropic.Message{
				{Role: "user", Content: fmt.Sprintf("Research this company:\n%s", prompt)},
			},
			WebSearch: &anthropic.WebSearchOptions{MaxUses: r.cfg.WebSearchMaxUses},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: research call")
	}
	resp.Usage.LogCost(r.cfg.Model, "research")

	result, err := parseResearchResult(resp.Text())
	if err != nil {
		return nil, err
	}

	// The model is asked to cite everything it used, but the API-level
	// citations are authoritative when the list comes back empty.
	if len(result.Sources) == 0 {
		result.Sources = resp.CitedURLs()
	}

	zap.L().Debug("enrich: research complete",
		zap.String("company", query.Name),
		zap.String("found_domain", result.Domain),
		zap.String("national_id", result.NationalID),
		zap.Int("sources", len(result.Sources)),
	)
	return result, nil
}

func parseResearchResult(text string) (*model.CompanyResearchResult, error) {
	var result model.CompanyResearchResult
	if err := json.Unmarshal([]byte(cleanJSON(text)), &result); err != nil {
		return nil, eris.Wrap(err, "enrich: parse research result")
	}
	return &result, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
