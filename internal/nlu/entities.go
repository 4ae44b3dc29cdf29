// Package nlu turns raw query text into an intent and entities. Entity
// extraction is purpose-built for US location, time-reference, and unit
// phrases; intent classification is an n-gram naive Bayes model trained from
// YAML examples.
package nlu

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/geocode"
)

var (
	inCityStateRe   = regexp.MustCompile(`(?i)\bin\s+([A-Za-z]+(?:\s[A-Za-z]+)*)\s*,\s*([A-Za-z]{2})\b`)
	inCityCodeRe    = regexp.MustCompile(`(?i)\bin\s+([A-Za-z][A-Za-z .-]*?)\s+([A-Za-z]{2})\b`)
	trailingStateRe = regexp.MustCompile(`(?i)([A-Za-z][A-Za-z .-]*?)\s*(,?)\s+([A-Za-z]{2})(?:\s*|[?.,!]\s*)$`)
	throughPrepRe   = regexp.MustCompile(`(?i).*\b(?:in|for|near|at)\s+`)
	prepositionRe   = regexp.MustCompile(`(?i)\b(?:in|for|near|at)\s+`)
	wordRunRe       = regexp.MustCompile(`^[A-Za-z]+(?:\s[A-Za-z]+)*`)
	wordRe          = regexp.MustCompile(`[A-Za-z]+`)
	cityBoundaryRe  = regexp.MustCompile(`(?i)^(?:\s+(?:for|in|please|now|today|tonight|tomorrow|this|next|and|right|currently|presently)\b|[?.,!]|$)`)
	commaStateRe    = regexp.MustCompile(`,\s*([A-Za-z]{2})\b`)
	trailingWordsRe = regexp.MustCompile(`([A-Za-z]+(?:\s[A-Za-z]+)*)\s*$`)
	zipTokenRe      = regexp.MustCompile(`\b(\d{5})\b`)
	simplePlaceRe   = regexp.MustCompile(`^[A-Za-z]+(?:\s[A-Za-z]+){0,2}$`)

	afternoonRe = regexp.MustCompile(`\b(later today|this afternoon|afternoon)\b`)
	morningRe   = regexp.MustCompile(`\b(this morning|morning)\b`)
	thisEveRe   = regexp.MustCompile(`\bthis evening\b`)
	tomorrowRe  = regexp.MustCompile(`\btomm?o?r?row\b`)
	nightRe     = regexp.MustCompile(`\b(night|evening)\b`)
	eveningRe   = regexp.MustCompile(`\bevening\b`)
	metricRe    = regexp.MustCompile(`\b(c|metric)\b`)
	imperialRe  = regexp.MustCompile(`\b(f|imperial|fahrenheit)\b`)
)

// stopwords never count as a location on their own.
var stopwords = setOf(
	"weather", "forecast", "alerts", "alert", "warning", "warnings", "advisory", "now",
	"today", "tonight", "tomorrow", "weekend", "celsius", "fahrenheit", "metric", "imperial",
	"please", "thanks", "thank", "you", "and", "or", "for", "on", "at", "near", "in",
	"right", "currently", "presently",
	"hi", "hello", "hey", "help", "yes", "no", "ok", "okay",
)

// fillers are leading words trimmed from a city captured without a preposition.
var fillers = setOf(
	"what", "whats", "s", "is", "the", "how", "hows", "it", "like", "get", "show",
	"me", "tell", "about", "give", "check", "any", "there", "will", "be", "going", "to",
)

// ambiguousCodes are USPS codes that are also common English words; without a
// comma they only count as a state when written in upper case.
var ambiguousCodes = setOf("IN", "OR", "ME", "OK", "HI", "OH", "LA", "PA", "MA", "DE", "AL", "CO", "ID")

var weekdaySet = func() map[string]bool {
	m := make(map[string]bool, len(domain.Weekdays))
	for _, d := range domain.Weekdays {
		m[string(d)] = true
	}
	return m
}()

type statePattern struct {
	code string
	re   *regexp.Regexp
}

// statePatterns match "in City StateName", longest state names first so
// "west virginia" wins over "virginia".
var statePatterns = func() []statePattern {
	names := make([]string, 0, len(domain.StateAbbr))
	for name := range domain.StateAbbr {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	out := make([]statePattern, len(names))
	for i, name := range names {
		out[i] = statePattern{
			code: domain.StateAbbr[name],
			re:   regexp.MustCompile(`(?i)\bin\s+([A-Za-z]+(?:\s[A-Za-z]+)*?)\s*,?\s+` + regexp.QuoteMeta(name) + `\b`),
		}
	}
	return out
}()

// Recognizer is a named-entity recognizer for places. It returns "" when it
// finds nothing.
type Recognizer interface {
	Recognize(text string) string
}

// Extractor extracts entities from text. The zero value uses pattern
// strategies only.
type Extractor struct {
	// Recognizer, when set, is tried before the pattern strategies.
	Recognizer Recognizer
}

// Extract returns the entities present in text. Time reference and units are
// set only when the text carries a cue for them.
func (x Extractor) Extract(text string) domain.Entities {
	e := domain.Entities{Location: x.Location(text)}
	if when, ok := DateTimeCue(text); ok {
		e.DateTime = when
	}
	if units, ok := UnitsCue(text); ok {
		e.Units = units
	}
	return e
}

// Location returns the location mentioned in text, or "".
func (x Extractor) Location(text string) string {
	if x.Recognizer != nil {
		if loc := strings.TrimSpace(x.Recognizer.Recognize(text)); loc != "" && !domain.IsStateName(loc) {
			return geocode.Canonicalize(loc)
		}
	}
	return ParseLocation(text)
}

// ParseLocation applies the pattern strategies in order and returns the first
// match, or "".
func ParseLocation(text string) string {
	for _, strategy := range []func(string) string{
		inCityState,
		inCityCode,
		inCityStateName,
		trailingCityState,
		prepositionCity,
		lastCommaState,
		zipCode,
		simplePlace,
	} {
		if loc := strategy(text); loc != "" {
			return loc
		}
	}
	return ""
}

// "in City, ST"
func inCityState(text string) string {
	if m := inCityStateRe.FindStringSubmatch(text); m != nil {
		return titleCase(m[1]) + ", " + strings.ToUpper(m[2])
	}
	return ""
}

// "in City ST"
func inCityCode(text string) string {
	for _, m := range inCityCodeRe.FindAllStringSubmatch(text, -1) {
		if acceptCode(m[2], false) {
			return titleCase(m[1]) + ", " + strings.ToUpper(m[2])
		}
	}
	return ""
}

// "in City StateName"
func inCityStateName(text string) string {
	for _, p := range statePatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return titleCase(m[1]) + ", " + p.code
		}
	}
	return ""
}

// "... City, ST" or "... City ST" at the end of the text.
func trailingCityState(text string) string {
	m := trailingStateRe.FindStringSubmatch(text)
	if m == nil || !acceptCode(m[3], m[2] == ",") {
		return ""
	}
	city := trimFillers(throughPrepRe.ReplaceAllString(m[1], ""))
	if city == "" {
		return ""
	}
	return titleCase(city) + ", " + strings.ToUpper(m[3])
}

// "in|for|near|at City" followed by a boundary word, punctuation, or the end.
// The longest word run that ends on a boundary and contains no stopwords wins.
func prepositionCity(text string) string {
	for _, loc := range prepositionRe.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		run := wordRunRe.FindString(rest)
		if run == "" {
			continue
		}
		ends := wordRe.FindAllStringIndex(run, -1)
		for k := len(ends) - 1; k >= 0; k-- {
			cand := run[:ends[k][1]]
			if cityBoundaryRe.MatchString(rest[len(cand):]) && placeWords(cand) {
				return titleCase(cand)
			}
		}
	}
	return ""
}

// the last ", ST" anywhere, with the word run just before it as the city.
func lastCommaState(text string) string {
	all := commaStateRe.FindAllStringSubmatchIndex(text, -1)
	if len(all) == 0 {
		return ""
	}
	last := all[len(all)-1]
	code := text[last[2]:last[3]]
	if !acceptCode(code, true) {
		return ""
	}
	m := trailingWordsRe.FindStringSubmatch(text[:last[0]])
	if m == nil {
		return ""
	}
	city := trimFillers(m[1])
	if city == "" {
		return ""
	}
	return titleCase(city) + ", " + strings.ToUpper(code)
}

func zipCode(text string) string {
	if m := zipTokenRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// simplePlace treats a short all-letter input as a place name.
func simplePlace(text string) string {
	t := strings.TrimSpace(text)
	if !simplePlaceRe.MatchString(t) || !placeWords(t) {
		return ""
	}
	return titleCase(t)
}

// placeWords reports whether no word of s is a stopword or weekday.
func placeWords(s string) bool {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if stopwords[w] || weekdaySet[w] {
			return false
		}
	}
	return true
}

func trimFillers(city string) string {
	words := strings.Fields(city)
	for len(words) > 0 {
		w := strings.ToLower(words[0])
		if !fillers[w] && !stopwords[w] {
			break
		}
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func acceptCode(code string, withComma bool) bool {
	upper := strings.ToUpper(code)
	if !domain.IsStateCode(upper) {
		return false
	}
	return withComma || code == upper || !ambiguousCodes[upper]
}

// ParseDateTime returns the time reference in text, defaulting to today.
func ParseDateTime(text string) domain.TimeRef {
	if when, ok := DateTimeCue(text); ok {
		return when
	}
	return domain.TimeToday
}

// DateTimeCue finds a time reference in text. Same-day afternoon and
// morning phrases are checked before tomorrow, so "tomorrow morning" reads as
// today_morning while "tomorrow night" is tomorrow_night.
func DateTimeCue(text string) (domain.TimeRef, bool) {
	t := strings.ToLower(text)

	switch {
	case afternoonRe.MatchString(t):
		return domain.TimeTodayAfternoon, true
	case morningRe.MatchString(t):
		return domain.TimeTodayMorning, true
	case thisEveRe.MatchString(t):
		return domain.TimeTodayEvening, true
	}

	if tomorrowRe.MatchString(t) || strings.Contains(t, "tmrw") {
		if nightRe.MatchString(t) {
			return domain.TimeTomorrowNight, true
		}
		return domain.TimeTomorrow, true
	}

	switch {
	case strings.Contains(t, "tonight") || eveningRe.MatchString(t):
		return domain.TimeTonight, true
	case strings.Contains(t, "weekend"):
		return domain.TimeWeekend, true
	}

	for _, d := range domain.Weekdays {
		if strings.Contains(t, string(d)) {
			return d, true
		}
	}
	return "", false
}

// ParseUnits returns metric when text asks for Celsius, otherwise imperial.
func ParseUnits(text string) domain.Units {
	if u, ok := UnitsCue(text); ok {
		return u
	}
	return domain.UnitsImperial
}

// UnitsCue finds an explicit unit preference in text.
func UnitsCue(text string) (domain.Units, bool) {
	t := strings.ToLower(text)
	if strings.Contains(t, "celsius") || metricRe.MatchString(t) {
		return domain.UnitsMetric, true
	}
	if imperialRe.MatchString(t) {
		return domain.UnitsImperial, true
	}
	return "", false
}

func titleCase(s string) string {
	return cases.Title(language.AmericanEnglish).String(strings.TrimSpace(s))
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
