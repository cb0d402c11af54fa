package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

// DetailsFetcher retrieves the firmographic record for a confirmed match.
type DetailsFetcher interface {
	Fetch(ctx context.Context, bvdID string) (*orbis.CompanyDetails, error)
}

type directoryFetcher struct {
	dir orbis.Client
}

// NewDetailsFetcher creates the details stage over the given directory
// client.
func NewDetailsFetcher(dir orbis.Client) DetailsFetcher {
	return &directoryFetcher{dir: dir}
}

// Fetch looks up the record by BvD ID with one bounded retry on transient
// failure. NotFound is returned unwrapped so the orchestrator can finalize
// with null details while retaining the match.
func (f *directoryFetcher) Fetch(ctx context.Context, bvdID string) (*orbis.CompanyDetails, error) {
	if bvdID == "" {
		return nil, eris.New("enrich: fetch details: empty bvd id")
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("orbis", "details")

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*orbis.CompanyDetails, error) {
		return f.dir.LookupByBvDID(ctx, bvdID)
	})
}
