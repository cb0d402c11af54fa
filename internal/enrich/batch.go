package enrich

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-enrich/internal/model"
)

// BatchResult pairs one input lead with its outcome. Err is non-nil only
// for validation rejections; every other failure is absorbed into Enriched.
type BatchResult struct {
	Lead     model.Lead          `json:"lead"`
	Enriched *model.EnrichedLead `json:"enriched,omitempty"`
	Err      error               `json:"-"`
}

// EnrichBatch runs the pipeline for each lead with at most concurrency
// leads in flight, respecting the external APIs' rate limits. Ordering of
// the result slice follows the input; inter-lead completion order does not.
// One lead failing validation never affects the others.
func (e *Enricher) EnrichBatch(ctx context.Context, leads []model.Lead, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]BatchResult, len(leads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, lead := range leads {
		g.Go(func() error {
			enriched, err := e.Enrich(ctx, lead)
			results[i] = BatchResult{Lead: lead, Enriched: enriched, Err: err}
			if err != nil {
				zap.L().Warn("enrich: lead rejected",
					zap.String("company", lead.CompanyName),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	// Workers never return errors; Wait only orders completion.
	_ = g.Wait()

	return results
}
