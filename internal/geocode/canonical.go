// Package geocode resolves free-text US locations to coordinates. It
// canonicalizes user input to "City, ST", delegates resolution to a
// pluggable provider, and caches hits and misses with a TTL.
package geocode

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

var (
	cityStateRe = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z .'-]*?)\s*,\s*([A-Za-z]{2})\s*$`)
	zipRe       = regexp.MustCompile(`^\d{5}$`)
	nonLetterRe = regexp.MustCompile(`[^a-z]`)
	canonicalRe = regexp.MustCompile(`^[A-Za-z][A-Za-z .'-]*,\s*[A-Z]{2}$`)
)

type cityKey struct {
	compact string
	state   string
}

// misspellings corrects common city typos, keyed by compact lowercase city
// (letters only) and USPS state.
var misspellings = map[cityKey]string{
	{"austn", "TX"}:         "Austin",
	{"dalas", "TX"}:         "Dallas",
	{"houstan", "TX"}:       "Houston",
	{"sanantonio", "TX"}:    "San Antonio",
	{"sanmarcos", "TX"}:     "San Marcos",
	{"fortworth", "TX"}:     "Fort Worth",
	{"elpaso", "TX"}:        "El Paso",
	{"corpuschristi", "TX"}: "Corpus Christi",
	{"pheonix", "AZ"}:       "Phoenix",
	{"tuscon", "AZ"}:        "Tucson",
	{"albuquerqe", "NM"}:    "Albuquerque",
	{"albequerque", "NM"}:   "Albuquerque",
	{"cincinatti", "OH"}:    "Cincinnati",
	{"cincinati", "OH"}:     "Cincinnati",
	{"pittsburg", "PA"}:     "Pittsburgh",
	{"philly", "PA"}:        "Philadelphia",
	{"sanfrancisco", "CA"}:  "San Francisco",
	{"sanfransisco", "CA"}:  "San Francisco",
	{"losangeles", "CA"}:    "Los Angeles",
	{"sandiego", "CA"}:      "San Diego",
	{"lasvegas", "NV"}:      "Las Vegas",
	{"neworleans", "LA"}:    "New Orleans",
	{"stlouis", "MO"}:       "St. Louis",
	{"saintlouis", "MO"}:    "St. Louis",
	{"oklahomacity", "OK"}:  "Oklahoma City",
	{"saltlakecity", "UT"}:  "Salt Lake City",
	{"newyork", "NY"}:       "New York",
	{"nyc", "NY"}:           "New York",
	{"miama", "FL"}:         "Miami",
	{"minneapolis", "MN"}:   "Minneapolis",
	{"minneapolos", "MN"}:   "Minneapolis",
}

type cityHint struct {
	city  string
	state string
}

// cityHints maps bare (compact lowercase) cities to a default state.
var cityHints = map[string]cityHint{
	"austin":        {"Austin", "TX"},
	"dallas":        {"Dallas", "TX"},
	"houston":       {"Houston", "TX"},
	"sanantonio":    {"San Antonio", "TX"},
	"sanmarcos":     {"San Marcos", "TX"},
	"fortworth":     {"Fort Worth", "TX"},
	"elpaso":        {"El Paso", "TX"},
	"denver":        {"Denver", "CO"},
	"seattle":       {"Seattle", "WA"},
	"boston":        {"Boston", "MA"},
	"chicago":       {"Chicago", "IL"},
	"miami":         {"Miami", "FL"},
	"orlando":       {"Orlando", "FL"},
	"phoenix":       {"Phoenix", "AZ"},
	"pheonix":       {"Phoenix", "AZ"},
	"tucson":        {"Tucson", "AZ"},
	"atlanta":       {"Atlanta", "GA"},
	"nashville":     {"Nashville", "TN"},
	"neworleans":    {"New Orleans", "LA"},
	"lasvegas":      {"Las Vegas", "NV"},
	"philadelphia":  {"Philadelphia", "PA"},
	"pittsburgh":    {"Pittsburgh", "PA"},
	"detroit":       {"Detroit", "MI"},
	"minneapolis":   {"Minneapolis", "MN"},
	"baltimore":     {"Baltimore", "MD"},
	"losangeles":    {"Los Angeles", "CA"},
	"sanfrancisco":  {"San Francisco", "CA"},
	"sanfransisco":  {"San Francisco", "CA"},
	"sandiego":      {"San Diego", "CA"},
	"newyork":       {"New York", "NY"},
	"nyc":           {"New York", "NY"},
	"oklahomacity":  {"Oklahoma City", "OK"},
	"saltlakecity":  {"Salt Lake City", "UT"},
	"albuquerque":   {"Albuquerque", "NM"},
	"stlouis":       {"St. Louis", "MO"},
	"kansascity":    {"Kansas City", "MO"},
	"raleigh":       {"Raleigh", "NC"},
	"charlotte":     {"Charlotte", "NC"},
	"portland":      {"Portland", "OR"},
	"corpuschristi": {"Corpus Christi", "TX"},
}

// Canonicalize normalizes a location to "City, ST" when it can, a ZIP as-is,
// and title case otherwise. Empty input yields "".
func Canonicalize(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return ""
	}
	if zipRe.MatchString(t) {
		return t
	}

	if m := cityStateRe.FindStringSubmatch(t); m != nil {
		return joinCityState(m[1], m[2])
	}

	if city, code, ok := splitStateName(t); ok {
		return joinCityState(city, code)
	}

	if hint, ok := cityHints[compact(t)]; ok {
		return hint.city + ", " + hint.state
	}
	return titleCase(t)
}

// IsCityState reports whether loc is already in canonical "City, ST" form.
func IsCityState(loc string) bool {
	return canonicalRe.MatchString(loc)
}

// IsZIP reports whether loc is a 5-digit ZIP code.
func IsZIP(loc string) bool {
	return zipRe.MatchString(strings.TrimSpace(loc))
}

// SplitCityState splits a canonical "City, ST" into its parts. Other inputs
// are returned whole as the name with an empty state.
func SplitCityState(loc string) (name, state string) {
	if m := cityStateRe.FindStringSubmatch(loc); m != nil {
		return strings.TrimSpace(m[1]), strings.ToUpper(m[2])
	}
	return strings.TrimSpace(loc), ""
}

// splitStateName splits "City StateName" (optional comma) using the longest
// matching full state name suffix.
func splitStateName(t string) (city, code string, ok bool) {
	low := strings.ToLower(t)
	if _, whole := domain.StateAbbr[low]; whole {
		return "", "", false
	}
	best := ""
	for name := range domain.StateAbbr {
		if len(name) > len(best) && strings.HasSuffix(low, " "+name) {
			best = name
		}
	}
	if best == "" {
		return "", "", false
	}
	city = strings.TrimRight(strings.TrimSpace(t[:len(t)-len(best)]), ", ")
	if city == "" {
		return "", "", false
	}
	return city, domain.StateAbbr[best], true
}

func joinCityState(city, state string) string {
	state = strings.ToUpper(state)
	city = strings.TrimSpace(city)
	if fixed, ok := misspellings[cityKey{compact(city), state}]; ok {
		return fixed + ", " + state
	}
	return titleCase(city) + ", " + state
}

func compact(s string) string {
	return nonLetterRe.ReplaceAllString(strings.ToLower(s), "")
}

// titleCase upper-cases the first letter of every word. cases.Caser is not
// safe for concurrent use, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.AmericanEnglish).String(strings.TrimSpace(s))
}
