package ingress

import (
	"regexp"
	"strings"
)

// Normalization strips conversational framing so the matcher sees only the
// intent-bearing text. Applied in order on the trimmed, lower-cased input:
// greeting-and-addressee removal, contraction expansion, design-marker
// removal, re-trim. Normalize is idempotent.

var (
	greetingRe = regexp.MustCompile(`^(hey|hi|hello)[\s,]+(gemini|assistant|ai|bot)[\s,.!?]*`)
	designRe   = regexp.MustCompile(`[\[(]design[^\])]*[\])]`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// contractions expanded by normalization. Fixed set, matched on word
// boundaries; anything else passes through untouched.
var contractions = []struct {
	re *regexp.Regexp
	to string
}{
	{regexp.MustCompile(`\bwhen's\b`), "when is"},
	{regexp.MustCompile(`\bwhere's\b`), "where is"},
	{regexp.MustCompile(`\bwhat's\b`), "what is"},
	{regexp.MustCompile(`\bwho's\b`), "who is"},
	{regexp.MustCompile(`\bhow's\b`), "how is"},
}

// Normalize applies the ingress normalization rules to a raw query.
func Normalize(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))

	// A repeated greeting ("hey gemini, hey gemini, ...") exposes another
	// greeting once the first is stripped, so strip to a fixpoint.
	for {
		stripped := greetingRe.ReplaceAllString(q, "")
		if stripped == q {
			break
		}
		q = stripped
	}

	for _, c := range contractions {
		q = c.re.ReplaceAllString(q, c.to)
	}

	q = designRe.ReplaceAllString(q, "")

	q = spaceRe.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}
