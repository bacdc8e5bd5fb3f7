package matcher

import (
	"strings"
	"unicode"
)

// stopWords are excluded from keyword sets before Jaccard scoring.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "do": {}, "does": {}, "of": {}, "for": {}, "to": {}, "in": {},
	"on": {}, "at": {}, "with": {}, "and": {}, "or": {}, "not": {}, "my": {},
	"me": {}, "it": {}, "this": {}, "that": {}, "what": {}, "when": {},
	"where": {}, "who": {}, "how": {}, "can": {}, "could": {}, "please": {},
	"next": {}, "get": {}, "find": {}, "show": {},
}

// tokenize splits text into lower-case word tokens, dropping punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
}

// keywordSet returns the stop-word-filtered token set of text.
func keywordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// textSimilarity scores how well a query matches a catalog entry's search
// text. Substring containment in either direction scores 0.9. Otherwise the
// score is the fraction of query words longer than two characters that
// overlap some search-text word by containment.
func textSimilarity(query, searchText string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	s := strings.ToLower(strings.TrimSpace(searchText))
	if q == "" || s == "" {
		return 0
	}

	if strings.Contains(q, s) || strings.Contains(s, q) {
		return 0.9
	}

	searchWords := tokenize(s)
	var considered, matched int
	for _, qw := range tokenize(q) {
		if len(qw) <= 2 {
			continue
		}
		considered++
		for _, sw := range searchWords {
			if strings.Contains(sw, qw) || strings.Contains(qw, sw) {
				matched++
				break
			}
		}
	}
	if considered == 0 {
		return 0
	}
	return float64(matched) / float64(considered)
}

// keywordSimilarity is the Jaccard overlap of two keyword sets.
func keywordSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// similarityScore blends text and keyword similarity for one catalog entry.
func similarityScore(query string, queryKeywords map[string]struct{}, entry *IndexEntry) float64 {
	return 0.6*textSimilarity(query, entry.SearchText) + 0.4*keywordSimilarity(queryKeywords, entry.Keywords)
}
