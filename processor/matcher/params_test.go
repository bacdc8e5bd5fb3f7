package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractParams(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantLocation string
	}{
		{
			name:         "location after in",
			query:        "what is the weather in berlin",
			wantLocation: "berlin",
		},
		{
			name:         "location after near with article",
			query:        "book a table near the office",
			wantLocation: "office",
		},
		{
			name:         "multi word location",
			query:        "concerts in new york city",
			wantLocation: "new york city",
		},
		{
			name:         "no location",
			query:        "when is the next radiohead concert",
			wantLocation: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := extractParams(tt.query)
			assert.Equal(t, tt.query, params["query"])
			if tt.wantLocation == "" {
				assert.NotContains(t, params, "location")
			} else {
				assert.Equal(t, tt.wantLocation, params["location"])
			}
		})
	}
}
