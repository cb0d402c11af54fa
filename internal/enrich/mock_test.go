package enrich

import (
	"context"
	"sync"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

// fakeDirectory scripts the Orbis client for matcher and fetcher tests.
type fakeDirectory struct {
	mu          sync.Mutex
	matchCalls  int
	lookupCalls int

	matchFn  func(criteria orbis.MatchCriteria, opts orbis.MatchOptions) ([]orbis.Match, error)
	lookupFn func(bvdID string) (*orbis.CompanyDetails, error)
}

func (f *fakeDirectory) MatchCompanies(_ context.Context, criteria orbis.MatchCriteria, opts orbis.MatchOptions) ([]orbis.Match, error) {
	f.mu.Lock()
	f.matchCalls++
	f.mu.Unlock()
	if f.matchFn == nil {
		return nil, nil
	}
	return f.matchFn(criteria, opts)
}

func (f *fakeDirectory) LookupByBvDID(_ context.Context, bvdID string) (*orbis.CompanyDetails, error) {
	f.mu.Lock()
	f.lookupCalls++
	f.mu.Unlock()
	if f.lookupFn == nil {
		return nil, nil
	}
	return f.lookupFn(bvdID)
}

func (f *fakeDirectory) calls() (match, lookup int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matchCalls, f.lookupCalls
}

// fakeAdjudicator scripts candidate adjudication for matcher tests.
type fakeAdjudicator struct {
	mu      sync.Mutex
	count   int
	verdict *Adjudication
	err     error
}

func (f *fakeAdjudicator) Adjudicate(_ context.Context, _ model.Lead, _ *model.CompanyResearchResult, _ []orbis.Match, _ orbis.Match) (*Adjudication, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return f.verdict, f.err
}

func (f *fakeAdjudicator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// fakeResearcher scripts the research stage.
type fakeResearcher struct {
	mu     sync.Mutex
	calls  int
	result *model.CompanyResearchResult
	err    error
	fn     func(query model.CompanyResearchQuery) (*model.CompanyResearchResult, error)
}

func (f *fakeResearcher) Research(_ context.Context, query model.CompanyResearchQuery) (*model.CompanyResearchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(query)
	}
	return f.result, f.err
}

// fakeMatcher scripts the match stage for orchestrator tests.
type fakeMatcher struct {
	mu     sync.Mutex
	calls  int
	result *model.CompanyMatchResult
	err    error
}

func (f *fakeMatcher) Match(context.Context, model.Lead, *model.CompanyResearchResult) (*model.CompanyMatchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}

// fakeFetcher scripts the details stage for orchestrator tests.
type fakeFetcher struct {
	mu     sync.Mutex
	calls  int
	result *orbis.CompanyDetails
	err    error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*orbis.CompanyDetails, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}
