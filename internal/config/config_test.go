package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Models: map[string]ModelConfig{
			"general": {
				Provider: "openai",
				BaseURL:  "https://api.example.com/v1/",
				Model:    "text-embed-v1",
			},
			"code": {
				Provider: "colbert",
				BaseURL:  "https://colbert.example.com",
				Model:    "code-colbert-v1",
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_NoModels(t *testing.T) {
	cfg := validConfig()
	cfg.Models = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing models")
	}
}

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := validConfig()
	m := cfg.Models["general"]
	m.Provider = "grpc"
	cfg.Models["general"] = m

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid provider")
	}

	expected := `models.general.provider must be "openai" or "colbert", got "grpc"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_RedisCacheRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache = CacheConfig{Enabled: true, Driver: "redis"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis cache without addrs")
	}
}

func TestValidate_RouterTable(t *testing.T) {
	tests := []struct {
		name    string
		table   map[string]RouteConfig
		wantErr bool
	}{
		{
			name:  "valid override",
			table: map[string]RouteConfig{"code": {Model: "code", Mode: "hybrid"}},
		},
		{
			name:    "unknown class",
			table:   map[string]RouteConfig{"poetry": {Model: "general"}},
			wantErr: true,
		},
		{
			name:    "unconfigured model",
			table:   map[string]RouteConfig{"code": {Model: "gigantic"}},
			wantErr: true,
		},
		{
			name:    "invalid mode",
			table:   map[string]RouteConfig{"prose": {Mode: "psychic"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Router.Table = tt.table
			cfg.ApplyDefaults()

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("expected Driver=memory, got %q", cfg.Cache.Driver)
	}
	if cfg.Cache.Size != 10000 {
		t.Errorf("expected Size=10000, got %d", cfg.Cache.Size)
	}
	if cfg.Scoring.RRFK != 60 {
		t.Errorf("expected RRFK=60, got %d", cfg.Scoring.RRFK)
	}
	if cfg.Scoring.BM25K1 != 1.2 {
		t.Errorf("expected BM25K1=1.2, got %f", cfg.Scoring.BM25K1)
	}
	if cfg.Scoring.BM25B != 0.75 {
		t.Errorf("expected BM25B=0.75, got %f", cfg.Scoring.BM25B)
	}
	if cfg.Eval.Workers != 4 {
		t.Errorf("expected Eval.Workers=4, got %d", cfg.Eval.Workers)
	}
	if cfg.Eval.TopN != 10 {
		t.Errorf("expected Eval.TopN=10, got %d", cfg.Eval.TopN)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Cache:   CacheConfig{Driver: "redis", Size: 500, ReadinessTimeout: 15},
		Scoring: ScoringConfig{RRFK: 10, BM25K1: 1.5, BM25B: 0.5, Workers: 2},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Cache.Driver != "redis" {
		t.Errorf("expected Driver=redis, got %q", cfg.Cache.Driver)
	}
	if cfg.Scoring.RRFK != 10 {
		t.Errorf("expected RRFK=10, got %d", cfg.Scoring.RRFK)
	}
	if cfg.Scoring.BM25K1 != 1.5 {
		t.Errorf("expected BM25K1=1.5, got %f", cfg.Scoring.BM25K1)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}

	content := []byte(`
http:
  port: 8080
models:
  general:
    provider: openai
    base_url: https://api.example.com/v1/
    model: text-embed-v1
    api_key: ${RANKFUSE_TEST_KEY:-fallback-key}
`)
	if err := os.WriteFile(filepath.Join(configDir, "test.yaml"), content, 0o600); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Models["general"].APIKey != "fallback-key" {
		t.Errorf("APIKey = %q, expected fallback-key", cfg.Models["general"].APIKey)
	}
	if cfg.Scoring.RRFK != 60 {
		t.Errorf("expected defaults applied, RRFK = %d", cfg.Scoring.RRFK)
	}
}
