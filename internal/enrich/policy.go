package enrich

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enrich/internal/model"
)

// defaultFreeMailDomains are consumer mail providers whose domains identify
// a person, not a company, and must never drive a directory lookup.
var defaultFreeMailDomains = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "yahoo.co.uk",
	"hotmail.com", "hotmail.co.uk",
	"outlook.com", "live.com", "msn.com",
	"icloud.com", "me.com",
	"aol.com", "gmx.com", "gmx.de", "protonmail.com", "proton.me",
}

// MatchPolicy tunes the match stage: the directory score floor, the
// confidence threshold that gates detail fetching, and the free-mail
// exclusion list.
type MatchPolicy struct {
	// ScoreLimit is the minimum directory match score. Default 0.7.
	ScoreLimit float64 `yaml:"score_limit"`
	// FetchThreshold is the lowest confidence that still fetches details.
	FetchThreshold string `yaml:"fetch_threshold"`
	// FreeMailDomains replaces the built-in consumer-provider list.
	FreeMailDomains []string `yaml:"free_mail_domains"`

	freeMail map[string]struct{}
}

// DefaultPolicy returns the compiled-in policy: score limit 0.7, fetch at
// medium or above, built-in free-mail list.
func DefaultPolicy() *MatchPolicy {
	p := &MatchPolicy{
		ScoreLimit:      0.7,
		FetchThreshold:  string(model.ConfidenceMedium),
		FreeMailDomains: defaultFreeMailDomains,
	}
	p.index()
	return p
}

// LoadPolicy reads a match policy from a YAML file. Omitted fields keep
// their defaults.
func LoadPolicy(path string) (*MatchPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read policy %s", path)
	}

	// The YAML has a top-level "match" key.
	var wrapper struct {
		Match MatchPolicy `yaml:"match"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "enrich: parse policy")
	}

	p := &wrapper.Match
	if p.ScoreLimit <= 0 {
		p.ScoreLimit = 0.7
	}
	if p.FetchThreshold == "" {
		p.FetchThreshold = string(model.ConfidenceMedium)
	}
	if _, err := model.ParseConfidence(p.FetchThreshold); err != nil {
		return nil, eris.Wrap(err, "enrich: policy fetch_threshold")
	}
	if len(p.FreeMailDomains) == 0 {
		p.FreeMailDomains = defaultFreeMailDomains
	}
	p.index()

	return p, nil
}

func (p *MatchPolicy) index() {
	p.freeMail = make(map[string]struct{}, len(p.FreeMailDomains))
	for _, d := range p.FreeMailDomains {
		p.freeMail[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
}

// Threshold returns the fetch threshold as a confidence level.
func (p *MatchPolicy) Threshold() model.Confidence {
	c, err := model.ParseConfidence(p.FetchThreshold)
	if err != nil {
		return model.ConfidenceMedium
	}
	return c
}

// IsFreeMail reports whether domain belongs to a consumer mail provider.
func (p *MatchPolicy) IsFreeMail(domain string) bool {
	if p.freeMail == nil {
		p.index()
	}
	_, ok := p.freeMail[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}
