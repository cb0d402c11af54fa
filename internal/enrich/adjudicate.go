package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/anthropic"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

const adjudicateSystemPrompt = `You are a company matching assistant.

You receive a JSON object with:
- "lead": the original inbound data (company_name, email_domain, city, country, phone) — may be sparse
- "research": a web-researched company profile — more complete, but may contain errors
- "candidates": company records returned by a business directory search
- "tentative_bvd_id": the candidate selected by deterministic rules

Your goal: confirm or correct the selection. Pick the single candidate that is most likely the lead's true company, using both data sources.

Disambiguation priority (in order):
1. Exact domain match with the lead or researched domain
2. National identifier match with the researched national_id
3. Phone match with the lead phone
4. Location match (city + country)
5. Company status "Active" over "Inactive"
6. Highest match score

Rules:
- Prioritize precision over recall: better NO selection than a WRONG one. Return a null bvd_id if no candidate is convincing.
- You may only pick a bvd_id that appears in candidates. Never invent one.
- If lead and research data conflict (different domains, locations), document the conflict in reasoning rather than silently resolving it.
- Keep reasoning to one or two short sentences naming the deciding evidence.

Respond with exactly one valid JSON object, no narrative text and no code fences:
{"bvd_id": string|null, "reasoning": string}`

// Adjudication is the reasoning capability's verdict on a set of directory
// candidates. An empty BvDID means no candidate convinced it.
type Adjudication struct {
	BvDID     string `json:"bvd_id"`
	Reasoning string `json:"reasoning"`
}

// Adjudicator resolves ambiguous directory candidate sets using both the
// lead and the research profile. Failures are advisory; the match stage
// keeps its deterministic selection when adjudication errors out.
type Adjudicator interface {
	Adjudicate(ctx context.Context, lead model.Lead, research *model.CompanyResearchResult, candidates []orbis.Match, tentative orbis.Match) (*Adjudication, error)
}

// AdjudicatorConfig tunes the reasoning call behind candidate adjudication.
type AdjudicatorConfig struct {
	Model     string
	MaxTokens int64
	// Timeout bounds a single attempt; one retry is allowed on top.
	Timeout time.Duration
}

func (c AdjudicatorConfig) withDefaults() AdjudicatorConfig {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

type claudeAdjudicator struct {
	ai  anthropic.Client
	cfg AdjudicatorConfig
}

// NewAdjudicator creates the reasoning-backed candidate adjudicator.
func NewAdjudicator(ai anthropic.Client, cfg AdjudicatorConfig) Adjudicator {
	return &claudeAdjudicator{ai: ai, cfg: cfg.withDefaults()}
}

type adjudicateInput struct {
	Lead struct {
		CompanyName string `json:"company_name"`
		EmailDomain string `json:"email_domain,omitempty"`
		City        string `json:"city,omitempty"`
		Country     string `json:"country,omitempty"`
		Phone       string `json:"phone,omitempty"`
	} `json:"lead"`
	Research       *model.CompanyResearchResult `json:"research,omitempty"`
	Candidates     []orbis.Match                `json:"candidates"`
	TentativeBvDID string                       `json:"tentative_bvd_id"`
}

func (a *claudeAdjudicator) Adjudicate(ctx context.Context, lead model.Lead, research *model.CompanyResearchResult, candidates []orbis.Match, tentative orbis.Match) (*Adjudication, error) {
	var input adjudicateInput
	input.Lead.CompanyName = lead.CompanyName
	input.Lead.EmailDomain = lead.EmailDomain()
	input.Lead.City = lead.City
	input.Lead.Country = lead.Country
	input.Lead.Phone = lead.NormalizedPhone()
	input.Research = research
	input.Candidates = candidates
	input.TentativeBvDID = tentative.BvDID

	prompt, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal adjudication input")
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "adjudicate")

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		return a.ai.CreateMessage(attemptCtx, anthropic.MessageRequest{
			Model:     a.cfg.Model,
			MaxTokens: a.cfg.MaxTokens,
			System:    []anthropic.SystemBlock{{Text: adjudicateSystemPrompt}},
			Messages: []anthropic.Message{
				{Role: "user", Content: fmt.Sprintf("Adjudicate these directory candidates:\n%s", prompt)},
			},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: adjudication call")
	}
	resp.Usage.LogCost(a.cfg.Model, "match")

	var verdict Adjudication
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &verdict); err != nil {
		return nil, eris.Wrap(err, "enrich: parse adjudication")
	}
	return &verdict, nil
}
