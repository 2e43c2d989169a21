// Package dedup implements the two-stage finding deduplicator (§4.7) and the
// concept-weighted Jaccard text similarity it and the semantic pre-filter's
// POI-level dedup both depend on.
//
// The similarity function is deliberately hand-rolled rather than backed by
// a general string-distance library: its dictionaries (stopwords, Polish
// number words, a small Polish stem map, and a key-concepts vocabulary) are
// part of the contract, not an implementation detail, and are versioned as
// plain data files under lexicon/ rather than baked into code.
package dedup

import (
	_ "embed"
	"regexp"
	"strings"
)

//go:embed lexicon/stopwords.txt
var stopwordsData string

//go:embed lexicon/numbers_pl.txt
var numbersData string

//go:embed lexicon/stems_pl.txt
var stemsData string

//go:embed lexicon/key_concepts.txt
var keyConceptsData string

var (
	stopwords  = parseSet(stopwordsData)
	numberMap  = parsePairs(numbersData)
	stemMap    = parsePairs(stemsData)
	keyConcepts = parseSet(keyConceptsData)
)

func parseSet(data string) map[string]bool {
	set := make(map[string]bool)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = true
	}
	return set
}

func parsePairs(data string) map[string]string {
	m := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		m[parts[0]] = parts[1]
	}
	return m
}

// punctuationExceptDigits strips everything that is not a letter, a digit,
// or whitespace.
var punctuationExceptDigits = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// shortTokenExceptions are the short tokens kept even though they are under
// the 3-character length floor.
var shortTokenExceptions = map[string]bool{"ui": true, "ux": true, "ai": true}

// normalize lowercases text, strips punctuation (keeping digits), removes
// stopwords, maps Polish number words to digits, applies the Polish stem
// map, and drops tokens shorter than 3 characters unless they are a digit
// string or one of ui/ux/ai.
func normalize(text string) []string {
	lower := strings.ToLower(text)
	stripped := punctuationExceptDigits.ReplaceAllString(lower, " ")
	fields := strings.Fields(stripped)

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if stopwords[tok] {
			continue
		}
		if digit, ok := numberMap[tok]; ok {
			tok = digit
		}
		if stem, ok := stemMap[tok]; ok {
			tok = stem
		}
		if isAllDigits(tok) || shortTokenExceptions[tok] || len(tok) >= 3 {
			out = append(out, tok)
		}
	}
	return out
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection, union int
	union = len(a)
	for k := range b {
		union++
		if a[k] {
			intersection++
			union--
		}
	}
	return float64(intersection) / float64(union)
}

// Similarity computes the concept-weighted Jaccard similarity between two
// free-text strings, normalized per §4.7. The result is always in [0,1],
// reflexive (Similarity(a,a)==1 for non-empty a), and symmetric.
func Similarity(a, b string) float64 {
	wordsA := toSet(normalize(a))
	wordsB := toSet(normalize(b))

	var sharedConcepts int
	var conceptsA, conceptsB int
	for w := range wordsA {
		if keyConcepts[w] {
			conceptsA++
			if wordsB[w] {
				sharedConcepts++
			}
		}
	}
	for w := range wordsB {
		if keyConcepts[w] {
			conceptsB++
		}
	}

	plainJaccard := jaccard(wordsA, wordsB)
	if sharedConcepts >= 2 {
		maxConcepts := conceptsA
		if conceptsB > maxConcepts {
			maxConcepts = conceptsB
		}
		if maxConcepts == 0 {
			return plainJaccard
		}
		return 0.6*float64(sharedConcepts)/float64(maxConcepts) + 0.4*plainJaccard
	}
	return plainJaccard
}
