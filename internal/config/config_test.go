package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("TEXT_SIMILARITY_THRESHOLD", "")
	t.Setenv("REJECT_FUTURE_DATES", "")

	cfg := Load()
	if cfg.TextThreshold != 0.70 {
		t.Errorf("TextThreshold = %v, want 0.70", cfg.TextThreshold)
	}
	if cfg.SemanticThreshold != 0.95 {
		t.Errorf("SemanticThreshold = %v, want 0.95", cfg.SemanticThreshold)
	}
	if cfg.RejectFutureDates {
		t.Error("future dates should be accepted by default")
	}
	if cfg.OpenAIEmbedModel != "text-embedding-3-small" {
		t.Errorf("OpenAIEmbedModel = %q", cfg.OpenAIEmbedModel)
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("REJECT_FUTURE_DATES", "true")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("TEXT_SIMILARITY_THRESHOLD", "not-a-number")

	cfg := Load()
	if cfg.AIProvider != "gemini" {
		t.Errorf("AIProvider = %q", cfg.AIProvider)
	}
	if !cfg.RejectFutureDates {
		t.Error("RejectFutureDates should be true")
	}
	if cfg.MaxUploadBytes() != 2*1024*1024 {
		t.Errorf("MaxUploadBytes() = %d", cfg.MaxUploadBytes())
	}
	if cfg.TextThreshold != 0.70 {
		t.Errorf("bad float should fall back to default, got %v", cfg.TextThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.AIProvider = "claude" }, "AI_PROVIDER"},
		{"zero threshold", func(c *Config) { c.TextThreshold = 0 }, "TEXT_SIMILARITY_THRESHOLD"},
		{"semantic above one", func(c *Config) { c.SemanticThreshold = 1.5 }, "SEMANTIC_SIMILARITY_THRESHOLD"},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{TextThreshold: 0.7, SemanticThreshold: 0.95, JWTSecret: "s"}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "db", DBSSLMode: "disable"}
	if got := cfg.DSN(); got != "postgres://u:p@h:5432/db?sslmode=disable" {
		t.Errorf("DSN() = %q", got)
	}
	cfg.DatabaseURL = "postgres://override"
	if got := cfg.DSN(); got != "postgres://override" {
		t.Errorf("DSN() = %q", got)
	}
}
