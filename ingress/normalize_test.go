package ingress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "greeting and contraction",
			input: "hey Gemini, when's the next Radiohead concert",
			want:  "when is the next radiohead concert",
		},
		{
			name:  "greeting with exclamation",
			input: "Hello assistant! what's the weather in Berlin",
			want:  "what is the weather in berlin",
		},
		{
			name:  "design marker bracket",
			input: "find flights to tokyo [design: keep it short]",
			want:  "find flights to tokyo",
		},
		{
			name:  "design marker paren",
			input: "book a table (design draft) near the office",
			want:  "book a table near the office",
		},
		{
			name:  "plain query untouched",
			input: "search for concert tickets",
			want:  "search for concert tickets",
		},
		{
			name:  "whitespace collapsed",
			input: "  where's   the   nearest   cafe  ",
			want:  "where is the nearest cafe",
		},
		{
			name:  "greeting mid-sentence not stripped",
			input: "tell hi gemini I said hello",
			want:  "tell hi gemini i said hello",
		},
		{
			name:  "repeated greeting fully stripped",
			input: "hey gemini, hey gemini, when's the next radiohead concert",
			want:  "when is the next radiohead concert",
		},
		{
			name:  "contraction only on word boundary",
			input: "play somewhen's greatest hits",
			want:  "play somewhen's greatest hits",
		},
		{
			name:  "empty input",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"hey Gemini, when's the next Radiohead concert",
		"hey gemini, hey gemini, when's the next radiohead concert",
		"what's on at the cinema [design v2]",
		"search for concert tickets",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", input)
	}
}
