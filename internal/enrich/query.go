package enrich

import (
	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
)

// BuildResearchQuery derives the research-stage query from a validated
// lead. The email domain is passed as a hint only when it identifies a
// company; consumer mail domains say nothing about the employer.
func BuildResearchQuery(lead model.Lead, policy *MatchPolicy) model.CompanyResearchQuery {
	q := model.CompanyResearchQuery{
		Name:           lead.CompanyName,
		City:           lead.City,
		Country:        lead.Country,
		Phone:          lead.NormalizedPhone(),
		Representative: lead.Name,
	}

	if domain := cache.NormalizeDomain(lead.EmailDomain()); domain != "" && !policy.IsFreeMail(domain) {
		q.Domain = domain
	}

	return q
}

// matchDomain picks the domain evidence for the match stage: the lead's
// email domain when it is corporate, otherwise whatever research turned up.
func matchDomain(lead model.Lead, research *model.CompanyResearchResult, policy *MatchPolicy) string {
	if domain := cache.NormalizeDomain(lead.EmailDomain()); domain != "" && !policy.IsFreeMail(domain) {
		return domain
	}
	if research != nil {
		if domain := cache.NormalizeDomain(research.Domain); domain != "" && !policy.IsFreeMail(domain) {
			return domain
		}
	}
	return ""
}
