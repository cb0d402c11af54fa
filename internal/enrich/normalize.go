package enrich

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists common legal entity suffixes to strip during name
// normalization. Orbis records pan-European entities, so the list carries
// continental forms alongside the US ones.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PLC", " P.L.C.",
	" CO", " CO.",
	" GMBH", " AG", " SARL", " S.A.R.L.", " SA", " S.A.",
	" BV", " B.V.", " NV", " N.V.",
	" APS", " A/S", " AB", " OY", " SRL", " S.R.L.", " SPA", " S.P.A.",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// asciiFold strips combining diacritical marks: "Müller" → "Muller".
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes a company name for cross-source comparison by:
//  1. Trimming whitespace and folding diacritics to ASCII
//  2. Converting to uppercase
//  3. Removing common legal suffixes (LTD, GmbH, Inc, etc.)
//  4. Stripping punctuation (commas, periods, dashes, ampersands)
//  5. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(asciiFold, name); err == nil {
		name = folded
	}
	name = strings.ToUpper(name)

	// Strip legal suffixes (all distinct, first hit wins).
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// namesAgree reports whether two company names refer to the same entity
// after normalization: exact equality, or one normalized name containing
// the other (trading names vs registered names).
func namesAgree(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// locationsAgree compares two city values case-insensitively. Empty values
// never agree; absence of evidence is not agreement.
func locationsAgree(a, b string) bool {
	la := strings.ToUpper(strings.TrimSpace(a))
	lb := strings.ToUpper(strings.TrimSpace(b))
	return la != "" && la == lb
}
