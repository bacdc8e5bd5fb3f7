package matcher

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the serializable form of a routing rule, loadable from the
// rules file.
type RuleSpec struct {
	Name       string  `json:"name" yaml:"name"`
	Pattern    string  `json:"pattern" yaml:"pattern"`
	ToolID     string  `json:"tool_id" yaml:"tool_id"`
	ServerID   string  `json:"server_id" yaml:"server_id"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Rule is a compiled routing rule. Rules are evaluated in order; the first
// pattern that matches wins and no later rule is scored.
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	ToolID     string
	ServerID   string
	Confidence float64
}

// RuleTable is an ordered set of compiled rules.
type RuleTable struct {
	rules []Rule
}

// CompileRules compiles specs into an ordered rule table.
func CompileRules(specs []RuleSpec) (*RuleTable, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if spec.Pattern == "" {
			return nil, fmt.Errorf("rule %q: pattern is required", spec.Name)
		}
		if spec.ToolID == "" || spec.ServerID == "" {
			return nil, fmt.Errorf("rule %q: tool_id and server_id are required", spec.Name)
		}
		if spec.Confidence < 0 || spec.Confidence > 1 {
			return nil, fmt.Errorf("rule %q: confidence must be in [0,1]", spec.Name)
		}
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: compile pattern: %w", spec.Name, err)
		}
		rules = append(rules, Rule{
			Name:       spec.Name,
			Pattern:    re,
			ToolID:     spec.ToolID,
			ServerID:   spec.ServerID,
			Confidence: spec.Confidence,
		})
	}
	return &RuleTable{rules: rules}, nil
}

// LoadRulesFile reads rule specs from a YAML file and compiles them.
func LoadRulesFile(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var specs []RuleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return CompileRules(specs)
}

// Match returns the first rule whose pattern matches the query, or nil.
func (t *RuleTable) Match(query string) *Rule {
	for i := range t.rules {
		if t.rules[i].Pattern.MatchString(query) {
			return &t.rules[i]
		}
	}
	return nil
}

// Len returns the number of rules in the table.
func (t *RuleTable) Len() int {
	return len(t.rules)
}

// DefaultRuleSpecs returns the built-in rule table used when no rules file
// is configured. Patterns are deliberately coarse.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{
			Name:       "events",
			Pattern:    `\b(concert|gig|festival|event|ticket|show)s?\b`,
			ToolID:     "web_search_exa",
			ServerID:   "exa",
			Confidence: 0.85,
		},
		{
			Name:       "navigate",
			Pattern:    `\b[a-z0-9][a-z0-9-]*\.(com|org|net|io|dev|co|app)\b`,
			ToolID:     "browser_navigate",
			ServerID:   "playwright",
			Confidence: 0.8,
		},
	}
}

// DefaultRules compiles the built-in rule table. The built-in patterns are
// static, so compilation cannot fail.
func DefaultRules() *RuleTable {
	table, err := CompileRules(DefaultRuleSpecs())
	if err != nil {
		panic(fmt.Sprintf("compile default rules: %v", err))
	}
	return table
}
