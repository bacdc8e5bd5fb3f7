package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL nats://localhost:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Matcher.ConfidenceThreshold != 0.7 {
		t.Errorf("expected default confidence threshold 0.7, got %f", cfg.Matcher.ConfidenceThreshold)
	}
	if cfg.Route.Stream != "ROUTE" {
		t.Errorf("expected default stream ROUTE, got %s", cfg.Route.Stream)
	}
	if cfg.Route.ClaimTTL != 5*time.Minute {
		t.Errorf("expected default claim TTL 5m, got %v", cfg.Route.ClaimTTL)
	}
	if cfg.Route.WaitTimeout != 20*time.Second {
		t.Errorf("expected default wait timeout 20s, got %v", cfg.Route.WaitTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing nats url",
			modify:  func(c *Config) { c.NATS.URL = "" },
			wantErr: true,
		},
		{
			name:    "threshold too low",
			modify:  func(c *Config) { c.Matcher.ConfidenceThreshold = -0.1 },
			wantErr: true,
		},
		{
			name:    "threshold too high",
			modify:  func(c *Config) { c.Matcher.ConfidenceThreshold = 1.1 },
			wantErr: true,
		},
		{
			name:    "missing stream",
			modify:  func(c *Config) { c.Route.Stream = "" },
			wantErr: true,
		},
		{
			name:    "non-positive claim ttl",
			modify:  func(c *Config) { c.Route.ClaimTTL = 0 },
			wantErr: true,
		},
		{
			name:    "watch rules without rules file",
			modify:  func(c *Config) { c.Matcher.WatchRules = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
nats:
  url: "nats://test:4222"
registry:
  url: "http://registry:8080"
invoker:
  url: "http://invoker:8081"
matcher:
  confidence_threshold: 0.8
  rules_file: "/etc/semroute/rules.yaml"
route:
  stream: "ROUTE_TEST"
  claim_ttl: 10m
  wait_timeout: 30s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Registry.URL != "http://registry:8080" {
		t.Errorf("expected registry URL http://registry:8080, got %s", cfg.Registry.URL)
	}
	if cfg.Invoker.URL != "http://invoker:8081" {
		t.Errorf("expected invoker URL http://invoker:8081, got %s", cfg.Invoker.URL)
	}
	if cfg.Matcher.ConfidenceThreshold != 0.8 {
		t.Errorf("expected confidence threshold 0.8, got %f", cfg.Matcher.ConfidenceThreshold)
	}
	if cfg.Route.Stream != "ROUTE_TEST" {
		t.Errorf("expected stream ROUTE_TEST, got %s", cfg.Route.Stream)
	}
	if cfg.Route.ClaimTTL != 10*time.Minute {
		t.Errorf("expected claim TTL 10m, got %v", cfg.Route.ClaimTTL)
	}
	if cfg.Route.WaitTimeout != 30*time.Second {
		t.Errorf("expected wait timeout 30s, got %v", cfg.Route.WaitTimeout)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		NATS: NATSConfig{
			URL: "nats://override:4222",
		},
		Registry: RegistryConfig{
			URL: "http://override-registry:8080",
		},
	}

	base.Merge(override)

	if base.NATS.URL != "nats://override:4222" {
		t.Errorf("expected NATS URL nats://override:4222, got %s", base.NATS.URL)
	}
	if base.Registry.URL != "http://override-registry:8080" {
		t.Errorf("expected registry URL to be overridden, got %s", base.Registry.URL)
	}
	// Threshold should remain from base since override didn't set it
	if base.Matcher.ConfidenceThreshold != 0.7 {
		t.Errorf("expected confidence threshold to remain default, got %f", base.Matcher.ConfidenceThreshold)
	}
	if base.Route.Stream != "ROUTE" {
		t.Errorf("expected stream to remain default, got %s", base.Route.Stream)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Registry.URL = "http://saved-registry:8080"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Registry.URL != "http://saved-registry:8080" {
		t.Errorf("expected registry URL http://saved-registry:8080, got %s", loaded.Registry.URL)
	}
}
