package domain

import "strings"

// StateAbbr maps lowercase US state (and DC) names to USPS codes.
var StateAbbr = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

// stateCodes is the set of valid USPS codes.
var stateCodes = func() map[string]bool {
	m := make(map[string]bool, len(StateAbbr))
	for _, code := range StateAbbr {
		m[code] = true
	}
	return m
}()

// IsStateCode reports whether s is a USPS state code (case-insensitive).
func IsStateCode(s string) bool {
	return stateCodes[strings.ToUpper(strings.TrimSpace(s))]
}

// IsStateName reports whether s is only a state: a full name, a USPS code,
// or a "state of ..." phrase.
func IsStateName(s string) bool {
	low := strings.ToLower(strings.TrimSpace(s))
	if _, ok := StateAbbr[low]; ok {
		return true
	}
	return IsStateCode(low) || strings.HasPrefix(low, "state of ")
}
