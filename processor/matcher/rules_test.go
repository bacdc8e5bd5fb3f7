package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesConcertQuery(t *testing.T) {
	table := DefaultRules()

	rule := table.Match("when is the next radiohead concert")
	require.NotNil(t, rule)
	assert.Equal(t, "web_search_exa", rule.ToolID)
	assert.Equal(t, "exa", rule.ServerID)
	assert.GreaterOrEqual(t, rule.Confidence, 0.85)
}

func TestDefaultRulesDomainToken(t *testing.T) {
	table := DefaultRules()

	rule := table.Match("open example.com for me")
	require.NotNil(t, rule)
	assert.Equal(t, "browser_navigate", rule.ToolID)
	assert.Equal(t, "playwright", rule.ServerID)
}

func TestRuleTableNoMatch(t *testing.T) {
	table := DefaultRules()
	assert.Nil(t, table.Match("what is the capital of france"))
}

func TestFirstMatchWins(t *testing.T) {
	table, err := CompileRules([]RuleSpec{
		{Name: "first", Pattern: `concert`, ToolID: "tool_a", ServerID: "srv_a", Confidence: 0.9},
		{Name: "second", Pattern: `concert tickets`, ToolID: "tool_b", ServerID: "srv_b", Confidence: 0.95},
	})
	require.NoError(t, err)

	// Both patterns match; order decides, not confidence.
	rule := table.Match("buy concert tickets")
	require.NotNil(t, rule)
	assert.Equal(t, "tool_a", rule.ToolID)
}

func TestCompileRulesValidation(t *testing.T) {
	_, err := CompileRules([]RuleSpec{{Name: "bad", Pattern: "", ToolID: "t", ServerID: "s"}})
	assert.Error(t, err)

	_, err = CompileRules([]RuleSpec{{Name: "bad", Pattern: "x", ToolID: "", ServerID: "s"}})
	assert.Error(t, err)

	_, err = CompileRules([]RuleSpec{{Name: "bad", Pattern: "x", ToolID: "t", ServerID: "s", Confidence: 1.5}})
	assert.Error(t, err)

	_, err = CompileRules([]RuleSpec{{Name: "bad", Pattern: "[unclosed", ToolID: "t", ServerID: "s", Confidence: 0.8}})
	assert.Error(t, err)
}

func TestLoadRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
- name: weather
  pattern: '\bweather\b'
  tool_id: get_weather
  server_id: weather
  confidence: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	table, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	rule := table.Match("what is the weather in berlin")
	require.NotNil(t, rule)
	assert.Equal(t, "get_weather", rule.ToolID)
}

func TestLoadRulesFileMissing(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
