package matcher

import "strings"

// locationPrepositions introduce a location phrase in a normalized query.
var locationPrepositions = map[string]struct{}{
	"in": {}, "at": {}, "near": {},
}

// extractParams builds the coarse argument set sent to the tool: always the
// full query, plus a location phrase when one follows "in", "at", or "near".
// Queries are already lower-cased by ingress, so the phrase is taken as the
// run of non-stop-words after the preposition.
func extractParams(query string) map[string]any {
	params := map[string]any{
		"query": query,
	}
	if loc := extractLocation(query); loc != "" {
		params["location"] = loc
	}
	return params
}

func extractLocation(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		if _, ok := locationPrepositions[w]; !ok {
			continue
		}
		var phrase []string
		for _, next := range words[i+1:] {
			next = strings.Trim(next, ".,!?")
			if next == "" {
				break
			}
			if _, stop := stopWords[next]; stop {
				// Articles before the phrase are skipped; a stop word
				// after it ends the phrase.
				if len(phrase) == 0 {
					continue
				}
				break
			}
			if _, prep := locationPrepositions[next]; prep {
				break
			}
			phrase = append(phrase, next)
			if len(phrase) == 3 {
				break
			}
		}
		if len(phrase) > 0 {
			return strings.Join(phrase, " ")
		}
	}
	return ""
}
