package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigOptionalDefaults(t *testing.T) {
	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Port)
	}
	if cfg.DefaultConcurrency != 3 {
		t.Errorf("default concurrency = %d, want 3", cfg.DefaultConcurrency)
	}
	if cfg.DefaultRequestDelayMs != 500 {
		t.Errorf("default delay = %d, want 500", cfg.DefaultRequestDelayMs)
	}
	if cfg.DispatchTimeoutSecs != 30 {
		t.Errorf("default dispatch timeout = %d, want 30", cfg.DispatchTimeoutSecs)
	}
	if cfg.ReportRetentionHours != 24 {
		t.Errorf("default retention = %d, want 24", cfg.ReportRetentionHours)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("port: 9090\nredisAddr: redis:6379\ndefaultConcurrency: 5\nmaxPromptsPerBatch: 50\napiTokens:\n  sekret: acme\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigOptional(path)
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("redisAddr = %s", cfg.RedisAddr)
	}
	if cfg.DefaultConcurrency != 5 {
		t.Errorf("defaultConcurrency = %d, want 5", cfg.DefaultConcurrency)
	}
	if cfg.MaxPromptsPerBatch != 50 {
		t.Errorf("maxPromptsPerBatch = %d, want 50", cfg.MaxPromptsPerBatch)
	}
	if cfg.APITokens["sekret"] != "acme" {
		t.Errorf("apiTokens not loaded: %v", cfg.APITokens)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("DEFAULT_CONCURRENCY", "7")
	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("PORT override ignored, port = %d", cfg.Port)
	}
	if cfg.DefaultConcurrency != 7 {
		t.Errorf("DEFAULT_CONCURRENCY override ignored, got %d", cfg.DefaultConcurrency)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"dev without tokens ok", func(c *Config) { c.Env = "dev" }, false},
		{"prod without tokens rejected", func(c *Config) { c.Env = "prod" }, true},
		{"prod with tokens ok", func(c *Config) {
			c.Env = "prod"
			c.APITokens = map[string]string{"tok": "owner-1"}
		}, false},
		{"max below default rejected", func(c *Config) {
			c.DefaultConcurrency = 10
			c.MaxConcurrency = 3
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigOptional("")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
