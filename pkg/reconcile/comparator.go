package reconcile

import (
	"math"

	"golang.org/x/text/cases"

	"github.com/opencne/listreview/pkg/extraction"
)

// Outcome is the result of scoring a paired A-row and B-row.
type Outcome struct {
	Status     Status
	Confidence float64
	Similarity float64
	Distance   int
}

// Compare scores two rows that share a comparison key. Structured fields are
// held to exact, case-insensitive equality; only the free-text candidate name
// is fuzzy-scored, so OCR and typing noise is tolerated exactly where it
// occurs in practice.
func Compare(a, b extraction.CandidateRow) Outcome {
	if rowsMatch(a, b) {
		return Outcome{Status: StatusAgreement, Confidence: 1, Similarity: 1, Distance: 0}
	}
	similarity, distance := NameSimilarity(a.Name, b.Name)
	return Outcome{
		Status:     StatusDispute,
		Confidence: similarity,
		Similarity: similarity,
		Distance:   distance,
	}
}

// exact-match field set; Independent is boolean equality, everything else is
// case-folded string equality.
func rowsMatch(a, b extraction.CandidateRow) bool {
	if a.Independent != b.Independent {
		return false
	}
	pairs := [][2]string{
		{a.Name, b.Name},
		{a.ProposingParty, b.ProposingParty},
		{a.Sigla, b.Sigla},
		{a.NomeLista, b.NomeLista},
		{a.DTMNFR, b.DTMNFR},
		{a.Simbolo, b.Simbolo},
	}
	for _, p := range pairs {
		if fold(p[0]) != fold(p[1]) {
			return false
		}
	}
	return true
}

// NameSimilarity computes the normalized Levenshtein similarity between two
// candidate names: 1 - distance/max(len(a), len(b)) over the case-folded
// strings. Two empty values are identical (1, 0); exactly one empty value is
// maximally distant (0, len of the other). The similarity is rounded to four
// decimal places.
func NameSimilarity(a, b string) (float64, int) {
	if a == "" && b == "" {
		return 1, 0
	}
	if a == b {
		return 1, 0
	}
	if a == "" || b == "" {
		nonEmpty := a
		if nonEmpty == "" {
			nonEmpty = b
		}
		return 0, len([]rune(nonEmpty))
	}

	fa := []rune(fold(a))
	fb := []rune(fold(b))
	distance := levenshtein(fa, fb)
	maxLen := len(fa)
	if len(fb) > maxLen {
		maxLen = len(fb)
	}
	similarity := 1 - float64(distance)/float64(maxLen)
	return math.Round(similarity*10000) / 10000, distance
}

// fold applies Unicode case folding, the locale-independent equivalent of
// lowercasing for comparison purposes.
func fold(s string) string {
	return cases.Fold().String(s)
}

// levenshtein computes edit distance with the classic two-row dynamic
// program over runes.
func levenshtein(source, target []rune) int {
	if len(source) == 0 {
		return len(target)
	}
	if len(target) == 0 {
		return len(source)
	}

	previous := make([]int, len(target)+1)
	current := make([]int, len(target)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(source); i++ {
		current[0] = i
		for j := 1; j <= len(target); j++ {
			insertCost := current[j-1] + 1
			deleteCost := previous[j] + 1
			replaceCost := previous[j-1]
			if source[i-1] != target[j-1] {
				replaceCost++
			}
			current[j] = min(insertCost, deleteCost, replaceCost)
		}
		previous, current = current, previous
	}
	return previous[len(target)]
}
