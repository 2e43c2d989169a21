package codemap

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// matcher ranks candidate symbol names against a (possibly misspelled or
// differently-worded) component name using Double Metaphone phonetic
// encoding combined with Jaro-Winkler similarity, the same two-stage
// strategy spoken transcripts use to recover misheard proper nouns:
// phonetic overlap first narrows the candidate set, then Jaro-Winkler
// ranks within it; a pure fuzzy fallback catches matches with no phonetic
// overlap at all.
type matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

func newMatcher() *matcher {
	return &matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
}

// best returns the candidate most similar to name and its confidence score.
// matched is false when nothing clears either threshold.
func (m *matcher) best(name string, candidates []string) (candidate string, confidence float64, matched bool) {
	if strings.TrimSpace(name) == "" || len(candidates) == 0 {
		return "", 0, false
	}

	nameLower := strings.ToLower(strings.TrimSpace(name))
	nameTokens := strings.Fields(nameLower)
	nameCodes := codesForTokens(nameTokens)

	var bestScore float64
	var bestCandidate string
	var bestPhonetic bool

	for _, c := range candidates {
		cLower := strings.ToLower(strings.TrimSpace(c))
		if cLower == "" {
			continue
		}
		cTokens := strings.Fields(cLower)
		phoneticMatch := codesOverlap(nameCodes, codesForTokens(cTokens))
		score := bestJWScore(nameTokens, cTokens, nameLower, cLower)

		if phoneticMatch {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestCandidate, bestScore, bestPhonetic = c, score, true
			}
		} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			bestCandidate, bestScore = c, score
		}
	}

	if bestCandidate == "" {
		return "", 0, false
	}
	return bestCandidate, bestScore, true
}

// codesForTokens returns the union of Double Metaphone codes for tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between name and
// candidate across three strategies: full-string, space-stripped, and best
// pairwise token comparison.
func bestJWScore(nameTokens, candTokens []string, nameFull, candFull string) float64 {
	score := matchr.JaroWinkler(nameFull, candFull, false)

	if len(nameTokens) > 1 || len(candTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(nameTokens, ""), strings.Join(candTokens, ""), false); s > score {
			score = s
		}
	}

	for _, nt := range nameTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(nt, ct, false); s > score {
				score = s
			}
		}
	}

	return score
}
