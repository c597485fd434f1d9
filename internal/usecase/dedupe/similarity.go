package dedupe

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"corpusmill/internal/domain/entity"
)

// Supported similarity algorithms.
const (
	AlgorithmTokenSet = "token_set"
	AlgorithmJaccard  = "jaccard"
)

// Scorer returns a similarity in [0,1] between two comparison titles.
type Scorer func(a, b string) float64

// NewScorer resolves an algorithm name to its scorer. The zero value ""
// selects token_set.
func NewScorer(algorithm string) (Scorer, error) {
	switch algorithm {
	case "", AlgorithmTokenSet:
		return tokenSetRatio, nil
	case AlgorithmJaccard:
		return jaccardSimilarity, nil
	default:
		return nil, fmt.Errorf("%w: unknown similarity algorithm %q", entity.ErrInvalidInput, algorithm)
	}
}

// tokenSetRatio scores two titles by recombining their token sets and taking
// the best indel ratio among the recombinations. A title whose tokens are a
// subset of the other's scores 1.0, which makes the measure robust to word
// order and to outlets appending section names.
func tokenSetRatio(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := toSet(tokensA)
	setB := toSet(tokensB)

	var common, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	combinedA := joinNonEmpty(base, strings.Join(onlyA, " "))
	combinedB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := indelRatio(combinedA, combinedB)
	if base != "" {
		if r := indelRatio(base, combinedA); r > best {
			best = r
		}
		if r := indelRatio(base, combinedB); r > best {
			best = r
		}
	}
	return best
}

// jaccardSimilarity is plain token-set Jaccard, the stricter alternative.
func jaccardSimilarity(a, b string) float64 {
	setA := toSet(tokenize(a))
	setB := toSet(tokenize(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// indelRatio is the normalized insert/delete similarity of two strings:
// 2*LCS / (len(a)+len(b)).
func indelRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	lcs := lcsLength(ra, rb)
	return float64(2*lcs) / float64(len(ra)+len(rb))
}

// lcsLength computes the longest-common-subsequence length with a rolling
// single-row table. Titles are short, so O(len(a)*len(b)) is fine.
func lcsLength(a, b []rune) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	row := make([]int, len(a)+1)
	for _, rb := range b {
		prev := 0
		for i, ra := range a {
			cur := row[i+1]
			if ra == rb {
				row[i+1] = prev + 1
			} else if row[i] > row[i+1] {
				row[i+1] = row[i]
			}
			prev = cur
		}
	}
	return row[len(a)]
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
