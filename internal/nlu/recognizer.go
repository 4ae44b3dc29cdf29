package nlu

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// maxPlaceWords bounds the n-gram length scanned by PlaceRecognizer.
const maxPlaceWords = 4

var tokenRe = regexp.MustCompile(`[A-Za-z][A-Za-z.'-]*`)

// PlaceRecognizer finds known place names in text, preferring the longest
// match. Single-word names only count when capitalized, which keeps words
// like "mobile" or "bend" from reading as places. A state that directly
// follows the place is kept with it.
type PlaceRecognizer struct {
	places map[string]bool
}

// NewPlaceRecognizer builds a recognizer over lowercase place names.
func NewPlaceRecognizer(names []string) *PlaceRecognizer {
	places := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.Join(strings.Fields(n), " "))
		if n != "" && !stopwords[n] {
			places[n] = true
		}
	}
	return &PlaceRecognizer{places: places}
}

// Recognize returns the longest known place in text, or "".
func (r *PlaceRecognizer) Recognize(text string) string {
	tokens := tokenRe.FindAllStringIndex(text, -1)
	bestStart, bestEnd, bestWords := -1, -1, 0

	for i := range tokens {
		for n := min(maxPlaceWords, len(tokens)-i); n >= 1; n-- {
			if n <= bestWords {
				break
			}
			start, end := tokens[i][0], tokens[i+n-1][1]
			span := text[start:end]
			key := strings.TrimRight(strings.ToLower(strings.Join(strings.Fields(span), " ")), ".")
			if !r.places[key] {
				continue
			}
			if n == 1 && !unicode.IsUpper(rune(span[0])) {
				continue
			}
			bestStart, bestEnd, bestWords = start, end, n
			break
		}
	}
	if bestStart < 0 {
		return ""
	}

	place := strings.TrimRight(text[bestStart:bestEnd], ".")
	if state := followingState(text[bestEnd:]); state != "" {
		return place + ", " + state
	}
	return place
}

// followingState returns the USPS code or state name right after a place,
// optionally separated by a comma.
func followingState(rest string) string {
	withComma := strings.HasPrefix(strings.TrimLeft(rest, " "), ",")
	rest = strings.TrimLeft(rest, " ,")
	words := strings.Fields(strings.ToLower(rest))
	for n := min(3, len(words)); n >= 1; n-- {
		name := strings.Trim(strings.Join(words[:n], " "), "?.,!")
		if code, ok := domain.StateAbbr[name]; ok {
			return code
		}
	}
	if len(words) > 0 {
		token := strings.Trim(strings.Fields(rest)[0], "?.,!")
		if len(token) == 2 && acceptCode(token, withComma) {
			return strings.ToUpper(token)
		}
	}
	return ""
}
