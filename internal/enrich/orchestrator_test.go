package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

func newTestEnricher(r Researcher, m Matcher, f DetailsFetcher) *Enricher {
	return NewEnricher(r, m, f, cache.New(cache.NewMemory()), DefaultPolicy(), Options{})
}

func validLead() model.Lead {
	return model.Lead{Name: "Jane Doe", CompanyName: "Acme Widgets Inc", Email: "jane@acme.com", City: "New York", Country: "US"}
}

func TestEnrichHappyPath(t *testing.T) {
	// High-confidence domain match fetches details.
	researcher := &fakeResearcher{result: &model.CompanyResearchResult{Name: "Acme Widgets Inc", Domain: "acme.com"}}
	matcher := &fakeMatcher{result: &model.CompanyMatchResult{
		BvDID: "US777", Name: "ACME WIDGETS INC", Confidence: model.ConfidenceHigh, Evidence: model.EvidenceDomain,
	}}
	fetcher := &fakeFetcher{result: &orbis.CompanyDetails{BvDID: "US777", Name: "ACME WIDGETS INC"}}

	enriched, err := newTestEnricher(researcher, matcher, fetcher).Enrich(context.Background(), validLead())
	require.NoError(t, err)

	assert.NotEmpty(t, enriched.ID)
	require.NotNil(t, enriched.Research)
	require.NotNil(t, enriched.Match)
	require.NotNil(t, enriched.Details)
	assert.Equal(t, "US777", enriched.Details.BvDID)
	assert.Equal(t, model.ConfidenceHigh, enriched.Confidence())

	for _, stage := range []string{model.StageResearch, model.StageMatch, model.StageDetails} {
		assert.Equal(t, model.StageStatusSucceeded, enriched.Meta.Stages[stage].Status, stage)
	}
	assert.False(t, enriched.Meta.CompletedAt.IsZero())
}

func TestEnrichLowConfidenceSkipsDetails(t *testing.T) {
	// Name+location-only hit stays below the medium threshold.
	researcher := &fakeResearcher{result: &model.CompanyResearchResult{Name: "WILDWINE LTD"}}
	matcher := &fakeMatcher{result: &model.CompanyMatchResult{
		BvDID: "GB555", Name: "WILDWINE LTD", Confidence: model.ConfidenceLow, Evidence: model.EvidenceNameLocation,
	}}
	fetcher := &fakeFetcher{}

	enriched, err := newTestEnricher(researcher, matcher, fetcher).Enrich(context.Background(), model.Lead{
		CompanyName: "WILDWINE LTD", Email: "owner@gmail.com", City: "London", Country: "UK",
	})
	require.NoError(t, err)

	assert.Nil(t, enriched.Details)
	assert.Equal(t, model.StageStatusSkipped, enriched.Meta.Stages[model.StageDetails].Status)
	assert.Equal(t, 0, fetcher.calls)
	// The low-confidence match itself is retained.
	assert.Equal(t, "GB555", enriched.Match.BvDID)
}

func TestEnrichResearchFailureIsNonFatal(t *testing.T) {
	researcher := &fakeResearcher{err: resilience.NewTransientError(assert.AnError, 504)}
	matcher := &fakeMatcher{result: &model.CompanyMatchResult{
		BvDID: "US777", Name: "ACME WIDGETS INC", Confidence: model.ConfidenceMedium, Evidence: model.EvidenceDomain,
	}}
	fetcher := &fakeFetcher{result: &orbis.CompanyDetails{BvDID: "US777"}}

	enriched, err := newTestEnricher(researcher, matcher, fetcher).Enrich(context.Background(), validLead())
	require.NoError(t, err)

	assert.Nil(t, enriched.Research)
	assert.Equal(t, model.StageStatusFailed, enriched.Meta.Stages[model.StageResearch].Status)
	// Match still ran on lead evidence alone and details were fetched.
	assert.Equal(t, 1, matcher.calls)
	require.NotNil(t, enriched.Details)
}

func TestEnrichMatchFailureDowngradesToNone(t *testing.T) {
	researcher := &fakeResearcher{result: &model.CompanyResearchResult{Name: "Acme"}}
	matcher := &fakeMatcher{err: resilience.NewTransientError(assert.AnError, 503)}
	fetcher := &fakeFetcher{}

	enriched, err := newTestEnricher(researcher, matcher, fetcher).Enrich(context.Background(), validLead())
	require.NoError(t, err)

	require.NotNil(t, enriched.Match)
	assert.Equal(t, model.ConfidenceNone, enriched.Confidence())
	assert.Empty(t, enriched.Match.BvDID)
	assert.Equal(t, model.StageStatusFailed, enriched.Meta.Stages[model.StageMatch].Status)
	assert.Equal(t, model.StageStatusSkipped, enriched.Meta.Stages[model.StageDetails].Status)
	assert.Equal(t, 0, fetcher.calls)
}

func TestEnrichDetailsNotFoundRetainsMatch(t *testing.T) {
	researcher := &fakeResearcher{result: &model.CompanyResearchResult{Name: "Acme"}}
	matcher := &fakeMatcher{result: &model.CompanyMatchResult{
		BvDID: "US777", Name: "ACME", Confidence: model.ConfidenceHigh, Evidence: model.EvidenceNationalID,
	}}
	fetcher := &fakeFetcher{err: resilience.NewNotFoundError("company", "US777")}

	enriched, err := newTestEnricher(researcher, matcher, fetcher).Enrich(context.Background(), validLead())
	require.NoError(t, err)

	assert.Nil(t, enriched.Details)
	assert.Equal(t, model.StageStatusFailed, enriched.Meta.Stages[model.StageDetails].Status)
	// Match result survives the missing record.
	assert.Equal(t, "US777", enriched.Match.BvDID)
	assert.Equal(t, model.ConfidenceHigh, enriched.Confidence())
}

func TestEnrichValidationErrorSurfaces(t *testing.T) {
	enricher := newTestEnricher(&fakeResearcher{}, &fakeMatcher{}, &fakeFetcher{})

	_, err := enricher.Enrich(context.Background(), model.Lead{Email: "a@b.com"})
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
}

func TestEnrichMatchCacheShortCircuits(t *testing.T) {
	researcher := &fakeResearcher{result: &model.CompanyResearchResult{Name: "Acme"}}
	matcher := &fakeMatcher{result: &model.CompanyMatchResult{
		BvDID: "US777", Name: "ACME", Confidence: model.ConfidenceHigh, Evidence: model.EvidenceDomain,
	}}
	fetcher := &fakeFetcher{result: &orbis.CompanyDetails{BvDID: "US777"}}
	enricher := newTestEnricher(researcher, matcher, fetcher)

	first, err := enricher.Enrich(context.Background(), validLead())
	require.NoError(t, err)
	assert.False(t, first.Meta.Stages[model.StageMatch].CacheHit)

	// Second lead from the same domain: match and details come from cache.
	second, err := enricher.Enrich(context.Background(), model.Lead{
		Name: "Bob Roe", CompanyName: "Acme Widgets", Email: "bob@acme.com",
	})
	require.NoError(t, err)

	assert.True(t, second.Meta.Stages[model.StageMatch].CacheHit)
	assert.True(t, second.Meta.Stages[model.StageDetails].CacheHit)
	assert.Equal(t, 1, matcher.calls)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "US777", second.Match.BvDID)
}

func TestEnrichWithoutCache(t *testing.T) {
	matcher := &fakeMatcher{result: model.NoMatch("nothing")}
	enricher := NewEnricher(&fakeResearcher{}, matcher, &fakeFetcher{}, nil, DefaultPolicy(), Options{})

	enriched, err := enricher.Enrich(context.Background(), validLead())
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceNone, enriched.Confidence())
}

func TestEnrichTimeoutFinalizesPartial(t *testing.T) {
	// Research hangs past the lead budget; the run still converges on an
	// EnrichedLead with failed stages rather than an error.
	researcher := &fakeResearcher{fn: func(model.CompanyResearchQuery) (*model.CompanyResearchResult, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}}
	matcher := &fakeMatcher{err: context.DeadlineExceeded}
	enricher := NewEnricher(researcher, matcher, &fakeFetcher{}, nil, DefaultPolicy(), Options{
		LeadTimeout: 50 * time.Millisecond,
	})

	enriched, err := enricher.Enrich(context.Background(), validLead())
	require.NoError(t, err)

	assert.Nil(t, enriched.Research)
	assert.Nil(t, enriched.Details)
	assert.Equal(t, model.ConfidenceNone, enriched.Confidence())
	assert.Equal(t, model.StageStatusFailed, enriched.Meta.Stages[model.StageResearch].Status)
}
