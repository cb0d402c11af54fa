package orbis

import (
	"time"
)

// MatchCriteria holds the fuzzy-match search inputs. Empty fields are
// omitted from the query.
type MatchCriteria struct {
	Name           string `json:"name,omitempty"`
	City           string `json:"city,omitempty"`
	Country        string `json:"country,omitempty"`
	Address        string `json:"address,omitempty"`
	PostCode       string `json:"post_code,omitempty"`
	NationalID     string `json:"national_id,omitempty"`
	EmailOrWebsite string `json:"email_or_website,omitempty"`
	PhoneOrFax     string `json:"phone_or_fax,omitempty"`
}

// toQuery converts the criteria to the Orbis match criteria field names.
func (c MatchCriteria) toQuery() map[string]string {
	q := make(map[string]string)
	if c.Name != "" {
		q["Name"] = c.Name
	}
	if c.City != "" {
		q["City"] = c.City
	}
	if c.Country != "" {
		q["Country"] = c.Country
	}
	if c.Address != "" {
		q["Address"] = c.Address
	}
	if c.PostCode != "" {
		q["PostCode"] = c.PostCode
	}
	if c.NationalID != "" {
		q["NationalId"] = c.NationalID
	}
	if c.EmailOrWebsite != "" {
		q["EMailOrWebsite"] = c.EmailOrWebsite
	}
	if c.PhoneOrFax != "" {
		q["PhoneOrFax"] = c.PhoneOrFax
	}
	return q
}

// IsEmpty reports whether no criterion is set.
func (c MatchCriteria) IsEmpty() bool {
	return len(c.toQuery()) == 0
}

// MatchOptions tunes the fuzzy-match behavior.
type MatchOptions struct {
	// ScoreLimit is the minimum match score returned by the API. Default: 0.7.
	ScoreLimit float64 `json:"score_limit,omitempty"`
	// SelectionMode controls candidate selection. Default: "Normal".
	SelectionMode string `json:"selection_mode,omitempty"`
}

func (o MatchOptions) withDefaults() MatchOptions {
	if o.ScoreLimit <= 0 {
		o.ScoreLimit = 0.7
	}
	if o.SelectionMode == "" {
		o.SelectionMode = "Normal"
	}
	return o
}

// Match is a single candidate returned by the fuzzy-match endpoint, ranked
// by Score. Hint is the API's qualitative assessment of the match.
type Match struct {
	BvDID           string  `json:"bvd_id"`
	Name            string  `json:"name"`
	MatchedName     string  `json:"matched_name"`
	MatchedNameType string  `json:"matched_name_type,omitempty"`
	Address         string  `json:"address,omitempty"`
	Postcode        string  `json:"postcode,omitempty"`
	City            string  `json:"city,omitempty"`
	Country         string  `json:"country,omitempty"`
	State           string  `json:"state,omitempty"`
	PhoneOrFax      string  `json:"phone_or_fax,omitempty"`
	EmailOrWebsite  string  `json:"email_or_website,omitempty"`
	NationalID      string  `json:"national_id,omitempty"`
	NationalIDLabel string  `json:"national_id_label,omitempty"`
	LegalForm       string  `json:"legal_form,omitempty"`
	Status          string  `json:"status,omitempty"`
	Hint            string  `json:"hint,omitempty"`
	Score           float64 `json:"score"`
}

// rawMatch mirrors the wire keys of the match endpoint (Match.* SELECT
// fields with the prefix stripped).
type rawMatch struct {
	BvDID           string  `json:"BvDId"`
	Name            string  `json:"Name"`
	MatchedName     string  `json:"MatchedName"`
	MatchedNameType string  `json:"MatchedName_Type"`
	Address         string  `json:"Address"`
	Postcode        string  `json:"Postcode"`
	City            string  `json:"City"`
	Country         string  `json:"Country"`
	State           string  `json:"State"`
	PhoneOrFax      string  `json:"PhoneOrFax"`
	EmailOrWebsite  string  `json:"EmailOrWebsite"`
	NationalID      string  `json:"National_Id"`
	NationalIDLabel string  `json:"NationalIdLabel"`
	LegalForm       string  `json:"LegalForm"`
	Status          string  `json:"Status"`
	Hint            string  `json:"Hint"`
	Score           float64 `json:"Score"`
}

func (r rawMatch) toMatch() Match {
	return Match(r)
}

// NationalID is a national identifier with its registry label.
type NationalID struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Financials is the latest-accounts financial snapshot in EUR.
type Financials struct {
	OperatingRevenue  *float64   `json:"operating_revenue,omitempty"`
	ProfitBeforeTax   *float64   `json:"profit_before_tax,omitempty"`
	ProfitLoss        *float64   `json:"profit_loss,omitempty"`
	CashFlow          *float64   `json:"cash_flow,omitempty"`
	TotalAssets       *float64   `json:"total_assets,omitempty"`
	ShareholdersFunds *float64   `json:"shareholders_funds,omitempty"`
	AccountingYear    *time.Time `json:"accounting_year,omitempty"`
}

// HasData reports whether any financial figure is present.
func (f Financials) HasData() bool {
	return f.OperatingRevenue != nil || f.ProfitBeforeTax != nil || f.ProfitLoss != nil ||
		f.CashFlow != nil || f.TotalAssets != nil || f.ShareholdersFunds != nil
}

// CompanyDetails is the flat firmographic record for a confirmed identity,
// unwrapped from the nested Data array of the details endpoint. It is
// fetched, never synthesized.
type CompanyDetails struct {
	BvDID             string       `json:"bvd_id"`
	OrbisID           string       `json:"orbis_id,omitempty"`
	Name              string       `json:"name"`
	Street            string       `json:"street,omitempty"`
	Street2           string       `json:"street2,omitempty"`
	City              string       `json:"city,omitempty"`
	State             string       `json:"state,omitempty"`
	PostalCode        string       `json:"postal_code,omitempty"`
	CountryCode       string       `json:"country_code,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	Websites          []string     `json:"websites,omitempty"`
	NationalIDs       []NationalID `json:"national_ids,omitempty"`
	ConsolidationCode string       `json:"consolidation_code,omitempty"`
	NACECode          string       `json:"nace_code,omitempty"`
	LegalStatus       string       `json:"legal_status,omitempty"`
	Employees         *int         `json:"employees,omitempty"`
	Financials        Financials   `json:"financials"`
}

// rawDetails mirrors the wire keys of one element of the details Data array.
type rawDetails struct {
	BvDID              string   `json:"BvDID"`
	OrbisID            string   `json:"ORBISID"`
	Name               string   `json:"NAME"`
	AddressLine1       string   `json:"ADDRESS_LINE1"`
	AddressLine2       string   `json:"ADDRESS_LINE2"`
	City               string   `json:"CITY"`
	State              string   `json:"STATE"`
	StandardizedPostal string   `json:"STANDARDIZED_POSTALCODE"`
	GLEIFHQPostal      string   `json:"GLEIF_HEADQUARTERS_ADDRESS_POSTAL_CODE"`
	GLEIFLegalPostal   string   `json:"GLEIF_LEGAL_ADDRESS_POSTAL_CODE"`
	CountryISO         string   `json:"COUNTRY_ISO_CODE"`
	Phone              []string `json:"PHONE"`
	Website            []string `json:"WEBSITE"`
	ConsolidationCode  string   `json:"CONSOLIDATION_CODE"`
	NACE2CoreCode      string   `json:"NACE2_CORE_CODE"`
	LegalStatus        string   `json:"LEGAL_STATUS"`
	Employees          *float64 `json:"EMPL"`
	YearLastAccounts   string   `json:"YEAR_LAST_ACCOUNTS"`
	NationalIDs        []struct {
		NationalID      string `json:"NATIONAL_ID"`
		NationalIDLabel string `json:"NATIONAL_ID_LABEL"`
	} `json:"NATIONAL_ID_FIXED_FORMAT"`
	OperatingRevenue  *float64 `json:"OPRE_EUR"`
	ProfitBeforeTax   *float64 `json:"PLBT_EUR"`
	ProfitLoss        *float64 `json:"PL_EUR"`
	CashFlow          *float64 `json:"CF_EUR"`
	TotalAssets       *float64 `json:"TOAS_EUR"`
	ShareholdersFunds *float64 `json:"SHFD_EUR"`
}

func (r rawDetails) toDetails() *CompanyDetails {
	d := &CompanyDetails{
		BvDID:             r.BvDID,
		OrbisID:           r.OrbisID,
		Name:              r.Name,
		Street:            r.AddressLine1,
		Street2:           r.AddressLine2,
		City:              r.City,
		State:             r.State,
		PostalCode:        firstNonEmpty(r.StandardizedPostal, r.GLEIFHQPostal, r.GLEIFLegalPostal),
		CountryCode:       r.CountryISO,
		Websites:          r.Website,
		ConsolidationCode: r.ConsolidationCode,
		NACECode:          r.NACE2CoreCode,
		LegalStatus:       r.LegalStatus,
		Financials: Financials{
			OperatingRevenue:  r.OperatingRevenue,
			ProfitBeforeTax:   r.ProfitBeforeTax,
			ProfitLoss:        r.ProfitLoss,
			CashFlow:          r.CashFlow,
			TotalAssets:       r.TotalAssets,
			ShareholdersFunds: r.ShareholdersFunds,
		},
	}

	// Phone arrives as an array; keep the first entry.
	if len(r.Phone) > 0 {
		d.Phone = r.Phone[0]
	}

	if r.Employees != nil {
		n := int(*r.Employees)
		d.Employees = &n
	}

	for _, id := range r.NationalIDs {
		d.NationalIDs = append(d.NationalIDs, NationalID{Value: id.NationalID, Label: id.NationalIDLabel})
	}

	if r.YearLastAccounts != "" {
		if y, err := time.Parse(time.RFC3339, r.YearLastAccounts); err == nil {
			d.Financials.AccountingYear = &y
		}
	}

	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
