// Package enrich implements the lead enrichment pipeline: a forward-only
// sequence of research, directory matching, confidence evaluation, and
// conditional detail retrieval. Every lead that passes validation yields an
// EnrichedLead; stage failures degrade to null sections, never to an
// aborted run.
package enrich

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

// Options bounds a single lead's run and sets cache lifetimes.
type Options struct {
	// LeadTimeout caps the whole pipeline for one lead. On expiry the run
	// finalizes with whatever partial result exists.
	LeadTimeout time.Duration
	MatchTTL    time.Duration
	DetailsTTL  time.Duration
}

func (o Options) withDefaults() Options {
	if o.LeadTimeout <= 0 {
		o.LeadTimeout = 3 * time.Minute
	}
	if o.MatchTTL <= 0 {
		o.MatchTTL = 24 * time.Hour
	}
	if o.DetailsTTL <= 0 {
		o.DetailsTTL = 24 * time.Hour
	}
	return o
}

// Enricher orchestrates the pipeline stages. It owns all transient stage
// results; only the assembled EnrichedLead leaves it.
type Enricher struct {
	researcher Researcher
	matcher    Matcher
	evaluator  Evaluator
	fetcher    DetailsFetcher
	cache      *cache.Service
	policy     *MatchPolicy
	opts       Options
}

// NewEnricher wires the stages together. cacheSvc may be nil, which
// disables match/details caching but changes nothing else.
func NewEnricher(researcher Researcher, matcher Matcher, fetcher DetailsFetcher, cacheSvc *cache.Service, policy *MatchPolicy, opts Options) *Enricher {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Enricher{
		researcher: researcher,
		matcher:    matcher,
		evaluator:  NewEvaluator(policy.Threshold()),
		fetcher:    fetcher,
		cache:      cacheSvc,
		policy:     policy,
		opts:       opts.withDefaults(),
	}
}

// Enrich runs the full pipeline for one lead. The only error ever returned
// is a validation rejection of the input; every other failure is absorbed
// into the EnrichedLead per the partial-failure policy.
func (e *Enricher) Enrich(ctx context.Context, lead model.Lead) (*model.EnrichedLead, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.LeadTimeout)
	defer cancel()

	log := zap.L().With(zap.String("company", lead.CompanyName), zap.String("domain", lead.EmailDomain()))
	log.Info("enrich: starting pipeline")

	enriched := &model.EnrichedLead{
		ID:   uuid.NewString(),
		Lead: lead,
		Meta: model.EnrichmentMeta{
			Stages:    make(map[string]model.StageResult),
			StartedAt: time.Now(),
		},
	}

	trackStage := func(name string, fn func() (bool, error)) error {
		start := time.Now()
		hit, err := fn()
		result := model.StageResult{
			Status:     model.StageStatusSucceeded,
			StartedAt:  start,
			DurationMS: time.Since(start).Milliseconds(),
			CacheHit:   hit,
		}
		if err != nil {
			result.Status = model.StageStatusFailed
			result.Error = err.Error()
			log.Warn("enrich: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", result.DurationMS),
				zap.Error(err),
			)
		}
		enriched.Meta.Stages[name] = result
		return err
	}

	// Research. Failure is non-fatal: match proceeds on lead evidence alone.
	_ = trackStage(model.StageResearch, func() (bool, error) {
		research, err := e.researcher.Research(ctx, BuildResearchQuery(lead, e.policy))
		if err != nil {
			return false, err
		}
		enriched.Research = research
		return false, nil
	})

	// Match. A directory outage downgrades to confidence none; it never
	// aborts the run.
	matchErr := trackStage(model.StageMatch, func() (bool, error) {
		result, hit, err := e.matchWithCache(ctx, lead, enriched.Research)
		if err != nil {
			return hit, err
		}
		enriched.Match = result
		return hit, nil
	})
	if matchErr != nil {
		enriched.Match = model.NoMatch("directory unavailable")
	}

	decision := e.evaluator.Evaluate(enriched.Match)
	if decision.Fetch {
		// NotFound and exhausted retries both finalize with null details;
		// the match result is retained either way.
		_ = trackStage(model.StageDetails, func() (bool, error) {
			details, hit, err := e.detailsWithCache(ctx, enriched.Match.BvDID)
			if err != nil {
				if resilience.IsNotFound(err) {
					log.Info("enrich: directory record gone", zap.String("bvd_id", enriched.Match.BvDID))
				}
				return hit, err
			}
			enriched.Details = details
			return hit, nil
		})
	} else {
		enriched.Meta.Stages[model.StageDetails] = model.StageResult{Status: model.StageStatusSkipped}
	}

	enriched.Meta.CompletedAt = time.Now()
	log.Info("enrich: pipeline done",
		zap.String("id", enriched.ID),
		zap.String("confidence", string(enriched.Confidence())),
		zap.String("bvd_id", matchBvDID(enriched.Match)),
		zap.Bool("details", enriched.Details != nil),
		zap.Duration("took", enriched.Meta.CompletedAt.Sub(enriched.Meta.StartedAt)),
	)
	return enriched, nil
}

// matchWithCache runs the match stage behind the single-flight cache keyed
// by normalized domain. Leads without a usable domain bypass the cache;
// there is no stable key to share.
func (e *Enricher) matchWithCache(ctx context.Context, lead model.Lead, research *model.CompanyResearchResult) (*model.CompanyMatchResult, bool, error) {
	domain := matchDomain(lead, research, e.policy)
	if e.cache == nil || domain == "" {
		result, err := e.matcher.Match(ctx, lead, research)
		return result, false, err
	}

	result, hit, err := cache.GetOrComputeJSON(ctx, e.cache, cache.MatchKey(domain), e.opts.MatchTTL,
		func(ctx context.Context) (model.CompanyMatchResult, error) {
			m, err := e.matcher.Match(ctx, lead, research)
			if err != nil {
				return model.CompanyMatchResult{}, err
			}
			return *m, nil
		})
	if err != nil {
		return nil, false, err
	}
	return &result, hit, nil
}

func (e *Enricher) detailsWithCache(ctx context.Context, bvdID string) (*orbis.CompanyDetails, bool, error) {
	if e.cache == nil {
		details, err := e.fetcher.Fetch(ctx, bvdID)
		return details, false, err
	}

	details, hit, err := cache.GetOrComputeJSON(ctx, e.cache, cache.DetailsKey(bvdID), e.opts.DetailsTTL,
		func(ctx context.Context) (orbis.CompanyDetails, error) {
			d, err := e.fetcher.Fetch(ctx, bvdID)
			if err != nil {
				return orbis.CompanyDetails{}, err
			}
			return *d, nil
		})
	if err != nil {
		return nil, false, err
	}
	return &details, hit, nil
}

func matchBvDID(m *model.CompanyMatchResult) string {
	if m == nil {
		return ""
	}
	return m.BvDID
}
