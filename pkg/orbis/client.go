// Package orbis is a client for the Orbis company-directory API. It exposes
// the two operations the enrichment pipeline depends on: fuzzy company
// matching and firmographic details lookup by BvD ID.
package orbis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-enrich/internal/resilience"
)

const defaultBaseURL = "https://api.bvdinfo.com/v1/orbis"

// defaultDetailFields is the SELECT list for details-by-BvDID lookups.
var defaultDetailFields = []any{
	"ORBISID",
	"BvDID",
	map[string]any{
		"NATIONAL_ID_FIXED_FORMAT": map[string]any{
			"SELECT": []any{
				map[string]any{"NATIONAL_ID": map[string]any{"AS": "NATIONAL_ID"}},
				map[string]any{"NATIONAL_ID_LABEL": map[string]any{"AS": "NATIONAL_ID_LABEL"}},
			},
		},
	},
	"NAME",
	"ADDRESS_LINE1",
	"ADDRESS_LINE2",
	"CITY",
	"STATE",
	"GLEIF_HEADQUARTERS_ADDRESS_POSTAL_CODE",
	"GLEIF_LEGAL_ADDRESS_POSTAL_CODE",
	"STANDARDIZED_POSTALCODE",
	"PHONE",
	"WEBSITE",
	"CONSOLIDATION_CODE",
	"COUNTRY_ISO_CODE",
	"NACE2_CORE_CODE",
	"EMPL",
	"YEAR_LAST_ACCOUNTS",
	"LEGAL_STATUS",
}

// financialCodes are requested in EUR at actual (unit 0) magnitude.
var financialCodes = []string{"OPRE", "PLBT", "PL", "CF", "TOAS", "SHFD"}

// defaultMatchFields is the SELECT list for the match endpoint.
var defaultMatchFields = []string{
	"Match.BvDId",
	"Match.Name",
	"Match.MatchedName",
	"Match.MatchedName_Type",
	"Match.Address",
	"Match.Postcode",
	"Match.City",
	"Match.Country",
	"Match.State",
	"Match.PhoneOrFax",
	"Match.EmailOrWebsite",
	"Match.National_Id",
	"Match.NationalIdLabel",
	"Match.LegalForm",
	"Match.Status",
	"Match.Hint",
	"Match.Score",
}

// Client defines the Orbis directory operations used by the pipeline.
type Client interface {
	// MatchCompanies runs the fuzzy-match endpoint and returns candidates
	// ranked by score. An empty result is not an error.
	MatchCompanies(ctx context.Context, criteria MatchCriteria, opts MatchOptions) ([]Match, error)

	// LookupByBvDID fetches the firmographic details for one BvD ID.
	// Returns a resilience.NotFoundError when the identifier has no record.
	LookupByBvDID(ctx context.Context, bvdID string) (*CompanyDetails, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second (burst 1). Zero disables
// limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewClient creates an Orbis API client. A circuit breaker guards the
// endpoint: after repeated transient failures, calls are rejected up front
// until the reset timeout, surfacing as transient errors so the pipeline
// degrades the same way as for any other outage.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitConfig{Name: "orbis"}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) MatchCompanies(ctx context.Context, criteria MatchCriteria, opts MatchOptions) ([]Match, error) {
	criteriaQuery := criteria.toQuery()
	if len(criteriaQuery) == 0 {
		return nil, eris.New("orbis: at least one match criterion is required")
	}
	opts = opts.withDefaults()

	query := map[string]any{
		"MATCH": map[string]any{
			"Criteria": criteriaQuery,
			"Options": map[string]any{
				"ScoreLimit":    opts.ScoreLimit,
				"SelectionMode": opts.SelectionMode,
			},
		},
		"SELECT": defaultMatchFields,
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, eris.Wrap(err, "orbis: marshal match query")
	}

	params := url.Values{}
	params.Set("QUERY", string(queryJSON))

	body, err := c.get(ctx, "companies/match", params)
	if err != nil {
		return nil, err
	}

	var raw []rawMatch
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "orbis: unmarshal match response")
	}

	matches := make([]Match, 0, len(raw))
	for _, r := range raw {
		matches = append(matches, r.toMatch())
	}
	return matches, nil
}

func (c *httpClient) LookupByBvDID(ctx context.Context, bvdID string) (*CompanyDetails, error) {
	if bvdID == "" {
		return nil, eris.New("orbis: bvd id is required")
	}

	selectFields := make([]any, 0, len(defaultDetailFields)+len(financialCodes))
	selectFields = append(selectFields, defaultDetailFields...)
	for _, code := range financialCodes {
		selectFields = append(selectFields, map[string]any{
			code: map[string]any{
				"Currency": "EUR",
				"Unit":     0,
				"As":       code + "_EUR",
			},
		})
	}

	payload := map[string]any{
		"QUERY": map[string]any{
			"WHERE":  []any{map[string]any{"BvDID": []string{bvdID}}},
			"SELECT": selectFields,
		},
	}

	body, err := c.post(ctx, "companies/data", payload)
	if err != nil {
		return nil, err
	}

	// The details endpoint wraps results in a Data array even for a single
	// identifier; unwrap to one flat record.
	var envelope struct {
		Data []rawDetails `json:"Data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "orbis: unmarshal details response")
	}

	if len(envelope.Data) == 0 {
		return nil, resilience.NewNotFoundError("company", bvdID)
	}

	return envelope.Data[0].toDetails(), nil
}

func (c *httpClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "orbis: create request %s", endpoint)
	}
	return c.do(req, endpoint)
}

func (c *httpClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "orbis: marshal payload %s", endpoint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", c.baseURL, endpoint), strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrapf(err, "orbis: create request %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint)
}

func (c *httpClient) do(req *http.Request, endpoint string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, eris.Wrap(err, "orbis: rate limit wait")
		}
	}

	if err := c.breaker.Allow(); err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "orbis: %s rejected", endpoint), 0)
	}
	body, err := c.send(req, endpoint)
	c.breaker.Record(err)
	return body, err
}

func (c *httpClient) send(req *http.Request, endpoint string) ([]byte, error) {
	req.Header.Set("ApiToken", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures (refused connections, DNS, timeouts) are
		// as transient as a 5xx: retryable, and they count toward the
		// breaker threshold.
		return nil, resilience.NewTransientError(eris.Wrapf(err, "orbis: send request %s", endpoint), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "orbis: read response %s", endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("orbis: %s unexpected status %d: %s", endpoint, resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, resilience.NewNotFoundError("endpoint", endpoint)
		}
		return nil, err
	}

	return body, nil
}
