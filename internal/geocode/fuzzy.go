package geocode

import (
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultFuzzyCutoff is the minimum similarity score (0-100) accepted as a
// fuzzy place match.
const DefaultFuzzyCutoff = 80

// similarity scores two strings 0-100 from their edit distance relative to
// the longer string.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}
