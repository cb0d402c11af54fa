package model

// CompanyResearchQuery is derived from a Lead before the research stage
// runs. Empty fields mean "unknown".
type CompanyResearchQuery struct {
	Name    string `json:"name,omitempty"`
	Domain  string `json:"domain,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Phone   string `json:"phone,omitempty"`
	// Representative is the person who submitted the lead, not the company.
	Representative string `json:"representative,omitempty"`
}

// CompanyResearchResult is the consolidated profile guess produced by the
// research stage. One answer, never a candidate list; fields the researcher
// could not verify stay empty. Sources lists the URLs evidence was drawn
// from.
type CompanyResearchResult struct {
	Name          string   `json:"name,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	Address       string   `json:"address,omitempty"`
	City          string   `json:"city,omitempty"`
	PostalCode    string   `json:"postal_code,omitempty"`
	Country       string   `json:"country,omitempty"`
	NationalID    string   `json:"national_id,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	EmployeeCount *int     `json:"employee_count,omitempty"`
	Revenue       string   `json:"revenue,omitempty"`
	Description   string   `json:"description,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// IsEmpty reports whether the research produced no usable identity evidence.
func (r *CompanyResearchResult) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.Name == "" && r.Domain == "" && r.NationalID == "" && r.City == "" && r.Country == ""
}
