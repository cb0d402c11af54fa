package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/sells-group/lead-enrich/internal/resilience"
)

// Lead is the raw inbound sales lead. Immutable once received; the pipeline
// never mutates it, only derives from it.
type Lead struct {
	Name        string            `json:"name"`
	CompanyName string            `json:"company_name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone,omitempty"`
	City        string            `json:"city,omitempty"`
	Country     string            `json:"country,omitempty"`
	SourceForm  string            `json:"source_form,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ReceivedAt  time.Time         `json:"received_at,omitempty"`
}

// Validate rejects malformed leads before pipeline entry. Location and
// timestamp fields are optional: upstream payloads frequently omit them and
// the pipeline tolerates their absence.
func (l Lead) Validate() error {
	if strings.TrimSpace(l.CompanyName) == "" {
		return resilience.NewValidationError("company_name", "required")
	}
	if strings.TrimSpace(l.Email) == "" {
		return resilience.NewValidationError("email", "required")
	}
	if _, err := mail.ParseAddress(l.Email); err != nil {
		return resilience.NewValidationError("email", "not a valid address")
	}
	return nil
}

// EmailDomain returns the lowercased domain part of the lead email, or ""
// when the email is malformed.
func (l Lead) EmailDomain() string {
	at := strings.LastIndex(l.Email, "@")
	if at < 0 || at == len(l.Email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(l.Email[at+1:]))
}

// NormalizedPhone formats the lead phone to E.164 using the lead country as
// the parsing region hint. Returns the trimmed input when parsing fails;
// phone quality issues never block enrichment.
func (l Lead) NormalizedPhone() string {
	trimmed := strings.TrimSpace(l.Phone)
	if trimmed == "" {
		return ""
	}

	region := regionFromCountry(l.Country)
	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// regionFromCountry maps a free-text country to an ISO region for phone
// parsing. Unknown countries fall back to US.
func regionFromCountry(country string) string {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "UK", "UNITED KINGDOM", "GB", "GREAT BRITAIN":
		return "GB"
	case "US", "USA", "UNITED STATES":
		return "US"
	case "DE", "GERMANY":
		return "DE"
	case "FR", "FRANCE":
		return "FR"
	case "NL", "NETHERLANDS":
		return "NL"
	case "DK", "DENMARK":
		return "DK"
	case "JE", "JERSEY":
		return "JE"
	default:
		if c := strings.TrimSpace(country); len(c) == 2 {
			return strings.ToUpper(c)
		}
		return "US"
	}
}
