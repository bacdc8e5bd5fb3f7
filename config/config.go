// Package config provides configuration loading and management for Semroute.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Semroute configuration
type Config struct {
	NATS     NATSConfig     `yaml:"nats"`
	Registry RegistryConfig `yaml:"registry"`
	Invoker  InvokerConfig  `yaml:"invoker"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Route    RouteConfig    `yaml:"route"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// RegistryConfig configures the tool registry collaborator
type RegistryConfig struct {
	// URL is the base URL of the registry service (empty = no registry)
	URL string `yaml:"url"`
}

// InvokerConfig configures the tool invocation collaborator
type InvokerConfig struct {
	// URL is the base URL of the invocation service (empty = no invoker)
	URL string `yaml:"url"`
}

// MatcherConfig configures tool matching
type MatcherConfig struct {
	// ConfidenceThreshold is the minimum confidence to accept a match (0-1)
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// RulesFile is an optional YAML file of routing rules
	RulesFile string `yaml:"rules_file"`
	// WatchRules reloads the rules file when it changes
	WatchRules bool `yaml:"watch_rules"`
}

// RouteConfig configures the routing pipeline
type RouteConfig struct {
	// Stream is the JetStream stream name for routing events
	Stream string `yaml:"stream"`
	// ClaimTTL is how long a resolution claim blocks re-claiming
	ClaimTTL time.Duration `yaml:"claim_ttl"`
	// WaitTimeout is the default caller-facing wait deadline
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Matcher: MatcherConfig{
			ConfidenceThreshold: 0.7,
		},
		Route: RouteConfig{
			Stream:      "ROUTE",
			ClaimTTL:    5 * time.Minute,
			WaitTimeout: 20 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Matcher.ConfidenceThreshold < 0 || c.Matcher.ConfidenceThreshold > 1 {
		return fmt.Errorf("matcher.confidence_threshold must be between 0 and 1")
	}
	if c.Route.Stream == "" {
		return fmt.Errorf("route.stream is required")
	}
	if c.Route.ClaimTTL <= 0 {
		return fmt.Errorf("route.claim_ttl must be positive")
	}
	if c.Route.WaitTimeout <= 0 {
		return fmt.Errorf("route.wait_timeout must be positive")
	}
	if c.Matcher.WatchRules && c.Matcher.RulesFile == "" {
		return fmt.Errorf("matcher.watch_rules requires matcher.rules_file")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Collaborators
	if other.Registry.URL != "" {
		c.Registry.URL = other.Registry.URL
	}
	if other.Invoker.URL != "" {
		c.Invoker.URL = other.Invoker.URL
	}

	// Matcher
	if other.Matcher.ConfidenceThreshold != 0 {
		c.Matcher.ConfidenceThreshold = other.Matcher.ConfidenceThreshold
	}
	if other.Matcher.RulesFile != "" {
		c.Matcher.RulesFile = other.Matcher.RulesFile
	}
	if other.Matcher.WatchRules {
		c.Matcher.WatchRules = true
	}

	// Route
	if other.Route.Stream != "" {
		c.Route.Stream = other.Route.Stream
	}
	if other.Route.ClaimTTL != 0 {
		c.Route.ClaimTTL = other.Route.ClaimTTL
	}
	if other.Route.WaitTimeout != 0 {
		c.Route.WaitTimeout = other.Route.WaitTimeout
	}
}
