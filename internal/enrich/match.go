package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/orbis"
)

// Matcher resolves a lead (plus optional research evidence) to a directory
// identity. A returned error means the directory was unreachable; "no
// match" is a successful result with confidence none.
type Matcher interface {
	Match(ctx context.Context, lead model.Lead, research *model.CompanyResearchResult) (*model.CompanyMatchResult, error)
}

type directoryMatcher struct {
	dir    orbis.Client
	adj    Adjudicator
	policy *MatchPolicy
}

// NewMatcher creates the triangulating match stage over the given directory
// client. adj may be nil, which skips reasoning-based adjudication of
// ambiguous candidate sets; selection then rests on the deterministic
// priority order alone.
func NewMatcher(dir orbis.Client, adj Adjudicator, policy *MatchPolicy) Matcher {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &directoryMatcher{dir: dir, adj: adj, policy: policy}
}

// Match triangulates in fixed priority order: national identifier, then
// domain, then name+location. Cross-validation against both the lead and
// the research profile is mandatory on every path; identifiers can be
// stale, so even an exact identifier hit is downgraded when the name
// disagrees. Conflicts are surfaced in the reasoning trace, never silently
// resolved.
func (m *directoryMatcher) Match(ctx context.Context, lead model.Lead, research *model.CompanyResearchResult) (*model.CompanyMatchResult, error) {
	var trace []string

	city, country := lead.City, lead.Country
	if research != nil {
		if research.Name != "" && lead.CompanyName != "" && !namesAgree(lead.CompanyName, research.Name) {
			trace = append(trace, fmt.Sprintf("lead company %q conflicts with researched name %q", lead.CompanyName, research.Name))
		}
		if city == "" {
			city = research.City
		} else if research.City != "" && !locationsAgree(city, research.City) {
			trace = append(trace, fmt.Sprintf("lead city %q conflicts with researched city %q", city, research.City))
		}
		if country == "" {
			country = research.Country
		}
	}

	ev := candidateEvidence{
		domain: cache.NormalizeDomain(matchDomain(lead, research, m.policy)),
		phone:  lead.NormalizedPhone(),
		city:   city,
	}
	if research != nil {
		ev.nationalID = research.NationalID
	}

	// 1. National identifier.
	if research != nil && research.NationalID != "" {
		candidates, err := m.search(ctx, orbis.MatchCriteria{
			NationalID: research.NationalID,
			Country:    country,
		})
		if err != nil {
			return nil, eris.Wrap(err, "enrich: match by national id")
		}
		if best, ok := m.pickCandidate(ctx, lead, research, candidates, ev, &trace); ok {
			conf := model.ConfidenceHigh
			if !m.nameValidates(best, lead, research) {
				conf = model.ConfidenceLow
				trace = append(trace, fmt.Sprintf("identifier %s resolved to %q which matches neither lead nor research name; identifier may be stale", research.NationalID, best.Name))
			} else {
				trace = append(trace, fmt.Sprintf("exact national identifier hit (%s), name cross-validated", research.NationalID))
			}
			return buildMatchResult(best, conf, model.EvidenceNationalID, trace, len(candidates)), nil
		}
		trace = append(trace, fmt.Sprintf("no directory record for national identifier %s", research.NationalID))
	}

	// 2. Domain.
	if domain := matchDomain(lead, research, m.policy); domain != "" {
		candidates, err := m.search(ctx, orbis.MatchCriteria{
			EmailOrWebsite: domain,
			Country:        country,
		})
		if err != nil {
			return nil, eris.Wrap(err, "enrich: match by domain")
		}
		if best, ok := m.pickCandidate(ctx, lead, research, candidates, ev, &trace); ok {
			nameOK := m.nameValidates(best, lead, research)
			locOK := locationsAgree(best.City, city)

			var conf model.Confidence
			switch {
			case nameOK && locOK:
				conf = model.ConfidenceHigh
				trace = append(trace, fmt.Sprintf("domain %s hit, name and location cross-validated", domain))
			case nameOK:
				conf = model.ConfidenceMedium
				trace = append(trace, fmt.Sprintf("domain %s hit, name cross-validated, location %q vs %q unconfirmed", domain, best.City, city))
			default:
				conf = model.ConfidenceLow
				trace = append(trace, fmt.Sprintf("domain %s hit scored %.2f but name %q does not corroborate", domain, best.Score, best.Name))
			}
			return buildMatchResult(best, conf, model.EvidenceDomain, trace, len(candidates)), nil
		}
		trace = append(trace, fmt.Sprintf("no directory record for domain %s", domain))
	}

	// 3. Name + location. Without an identifier or a domain to corroborate,
	// a fuzzy name hit is never worth more than low.
	name := lead.CompanyName
	if name == "" && research != nil {
		name = research.Name
	}
	if name != "" {
		candidates, err := m.search(ctx, orbis.MatchCriteria{
			Name:    name,
			City:    city,
			Country: country,
		})
		if err != nil {
			return nil, eris.Wrap(err, "enrich: match by name")
		}
		if best, ok := m.pickCandidate(ctx, lead, research, candidates, ev, &trace); ok {
			trace = append(trace, fmt.Sprintf("name+location hit %q scored %.2f; no identifier or domain corroboration", best.Name, best.Score))
			return buildMatchResult(best, model.ConfidenceLow, model.EvidenceNameLocation, trace, len(candidates)), nil
		}
		trace = append(trace, "no directory record for name+location")
	}

	trace = append(trace, "no directory hit on any evidence path")
	zap.L().Debug("enrich: no match", zap.String("company", lead.CompanyName))
	return model.NoMatch(strings.Join(trace, "; ")), nil
}

func (m *directoryMatcher) search(ctx context.Context, criteria orbis.MatchCriteria) ([]orbis.Match, error) {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("orbis", "match")

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]orbis.Match, error) {
		return m.dir.MatchCompanies(ctx, criteria, orbis.MatchOptions{ScoreLimit: m.policy.ScoreLimit})
	})
}

// pickCandidate settles a candidate set: deterministic priority selection
// first, then optional reasoning-based adjudication when more than one
// candidate came back. Adjudication is advisory — it may only repoint
// within the returned candidates, and its failure leaves the deterministic
// pick standing.
func (m *directoryMatcher) pickCandidate(ctx context.Context, lead model.Lead, research *model.CompanyResearchResult, candidates []orbis.Match, ev candidateEvidence, trace *[]string) (orbis.Match, bool) {
	best, decided, ok := selectCandidate(candidates, ev)
	if !ok {
		return orbis.Match{}, false
	}
	if len(candidates) == 1 {
		return best, true
	}

	*trace = append(*trace, fmt.Sprintf("%d candidates, selected %s on %s", len(candidates), best.BvDID, decided))

	if m.adj != nil {
		verdict, err := m.adj.Adjudicate(ctx, lead, research, candidates, best)
		switch {
		case err != nil:
			zap.L().Warn("enrich: adjudication failed, keeping deterministic selection",
				zap.String("company", lead.CompanyName),
				zap.Error(err),
			)
		case verdict != nil:
			if verdict.BvDID != "" && verdict.BvDID != best.BvDID {
				if alt, found := findCandidate(candidates, verdict.BvDID); found {
					best = alt
					*trace = append(*trace, fmt.Sprintf("adjudicated to %s", verdict.BvDID))
				}
			}
			if verdict.Reasoning != "" {
				*trace = append(*trace, verdict.Reasoning)
			}
		}
	}
	return best, true
}

// nameValidates checks the candidate's registered and matched names against
// both the lead and the research profile.
func (m *directoryMatcher) nameValidates(c orbis.Match, lead model.Lead, research *model.CompanyResearchResult) bool {
	refs := []string{lead.CompanyName}
	if research != nil && research.Name != "" {
		refs = append(refs, research.Name)
	}
	for _, ref := range refs {
		if namesAgree(c.Name, ref) || namesAgree(c.MatchedName, ref) {
			return true
		}
	}
	return false
}

// candidateEvidence carries the lead/research facts used to break ties
// between directory candidates. domain is already normalized.
type candidateEvidence struct {
	domain     string
	nationalID string
	phone      string
	city       string
}

// selectCandidate disambiguates a candidate set by successive filtering in
// fixed priority order: exact domain, national identifier, phone, location,
// active status, then score. A criterion only narrows the set when it
// separates candidates; the first one that does is reported as the decider.
// Final ties break on score, then BvD ID, so selection is deterministic.
func selectCandidate(candidates []orbis.Match, ev candidateEvidence) (orbis.Match, string, bool) {
	if len(candidates) == 0 {
		return orbis.Match{}, "", false
	}

	criteria := []struct {
		name string
		fits func(orbis.Match) bool
	}{
		{"exact domain", func(c orbis.Match) bool {
			return ev.domain != "" && candidateDomain(c.EmailOrWebsite) == ev.domain
		}},
		{"national identifier", func(c orbis.Match) bool {
			return ev.nationalID != "" && identifiersAgree(c.NationalID, ev.nationalID)
		}},
		{"phone", func(c orbis.Match) bool {
			return ev.phone != "" && phonesAgree(c.PhoneOrFax, ev.phone)
		}},
		{"location", func(c orbis.Match) bool {
			return locationsAgree(c.City, ev.city)
		}},
		{"active status", func(c orbis.Match) bool {
			return strings.EqualFold(strings.TrimSpace(c.Status), "Active")
		}},
	}

	remaining := candidates
	decided := "score"
	for _, cr := range criteria {
		if len(remaining) == 1 {
			break
		}
		var kept []orbis.Match
		for _, c := range remaining {
			if cr.fits(c) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 && len(kept) < len(remaining) {
			remaining = kept
			if decided == "score" {
				decided = cr.name
			}
		}
	}

	best := remaining[0]
	for _, c := range remaining[1:] {
		if c.Score > best.Score || (c.Score == best.Score && c.BvDID < best.BvDID) {
			best = c
		}
	}
	return best, decided, true
}

func findCandidate(candidates []orbis.Match, bvdID string) (orbis.Match, bool) {
	for _, c := range candidates {
		if c.BvDID == bvdID {
			return c, true
		}
	}
	return orbis.Match{}, false
}

// candidateDomain normalizes a directory EmailOrWebsite value, which may be
// an email address or a URL, down to a bare domain.
func candidateDomain(v string) string {
	if i := strings.LastIndex(v, "@"); i >= 0 {
		v = v[i+1:]
	}
	return cache.NormalizeDomain(v)
}

func identifiersAgree(a, b string) bool {
	na, nb := normalizeIdentifier(a), normalizeIdentifier(b)
	return na != "" && na == nb
}

func normalizeIdentifier(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// phonesAgree compares phone numbers digit-wise. Directory records often
// carry national formats while leads are E.164, so a suffix match on at
// least seven digits counts.
func phonesAgree(a, b string) bool {
	da, db := digitsOnly(a), digitsOnly(b)
	if len(da) < 7 || len(db) < 7 {
		return false
	}
	return strings.HasSuffix(da, db) || strings.HasSuffix(db, da)
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func buildMatchResult(c orbis.Match, conf model.Confidence, ev model.MatchEvidence, trace []string, candidates int) *model.CompanyMatchResult {
	return &model.CompanyMatchResult{
		BvDID:       c.BvDID,
		Name:        c.Name,
		MatchedName: c.MatchedName,
		City:        c.City,
		Country:     c.Country,
		NationalID:  c.NationalID,
		Status:      c.Status,
		Confidence:  conf,
		Evidence:    ev,
		Score:       c.Score,
		Hint:        c.Hint,
		Reasoning:   strings.Join(trace, "; "),
		Candidates:  candidates,
	}
}
