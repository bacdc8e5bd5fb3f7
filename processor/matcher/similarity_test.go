package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordSimilaritySelf(t *testing.T) {
	set := keywordSet("search web concert tickets")
	assert.InDelta(t, 1.0, keywordSimilarity(set, set), 1e-9)
}

func TestKeywordSimilarityDisjoint(t *testing.T) {
	a := keywordSet("weather forecast rain")
	b := keywordSet("concert tickets music")
	assert.Zero(t, keywordSimilarity(a, b))
}

func TestKeywordSimilarityPartialOverlap(t *testing.T) {
	a := keywordSet("search concert tickets")
	b := keywordSet("search flights")
	// intersection {search}, union {search, concert, tickets, flights}
	assert.InDelta(t, 0.25, keywordSimilarity(a, b), 1e-9)
}

func TestKeywordSimilarityEmpty(t *testing.T) {
	assert.Zero(t, keywordSimilarity(nil, keywordSet("anything")))
	assert.Zero(t, keywordSimilarity(keywordSet("anything"), nil))
}

func TestTextSimilaritySubstring(t *testing.T) {
	assert.InDelta(t, 0.9, textSimilarity("web search", "web search exa finds pages"), 1e-9)
	assert.InDelta(t, 0.9, textSimilarity("the full web search exa engine", "web search exa"), 1e-9)
}

func TestTextSimilarityNonOverlapping(t *testing.T) {
	score := textSimilarity("quantum chess endgames", "browser navigate url pages")
	assert.Less(t, score, 0.9)
	assert.Zero(t, score)
}

func TestTextSimilarityWordFraction(t *testing.T) {
	// "concert" and "tickets" overlap catalog words, "radiohead" does not.
	// Short words are not considered.
	score := textSimilarity("radiohead concert tickets", "search concerts events tickets")
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
}

func TestSimilarityScoreBlend(t *testing.T) {
	entry := NewIndexEntry("exa", "web_search_exa", "search the web for pages")
	query := "web search exa"

	ts := textSimilarity(query, entry.SearchText)
	ks := keywordSimilarity(keywordSet(query), entry.Keywords)
	want := 0.6*ts + 0.4*ks

	assert.InDelta(t, want, similarityScore(query, keywordSet(query), &entry), 1e-9)
	assert.GreaterOrEqual(t, similarityScore(query, keywordSet(query), &entry), 0.7)
}

func TestKeywordSetFiltersStopWords(t *testing.T) {
	set := keywordSet("what is the weather in berlin")
	_, hasWhat := set["what"]
	_, hasThe := set["the"]
	_, hasWeather := set["weather"]
	_, hasBerlin := set["berlin"]

	assert.False(t, hasWhat)
	assert.False(t, hasThe)
	assert.True(t, hasWeather)
	assert.True(t, hasBerlin)
}
