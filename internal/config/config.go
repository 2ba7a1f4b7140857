package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rankfuse configuration.
type Config struct {
	HTTP    HTTPConfig             `yaml:"http"`
	Auth    AuthConfig             `yaml:"auth"`
	Cache   CacheConfig            `yaml:"cache"`
	Models  map[string]ModelConfig `yaml:"models"`
	Router  RouterConfig           `yaml:"router"`
	Scoring ScoringConfig          `yaml:"scoring"`
	Eval    EvalConfig             `yaml:"eval"`
	Logging LoggingConfig          `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds embedding cache store settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // redis, memory (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Size             int      `yaml:"size"` // memory driver entry cap
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ModelConfig holds one embedding model endpoint's settings. Provider
// selects the wire protocol: "openai" yields pooled single vectors,
// "colbert" yields per-token multi vectors.
type ModelConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// RouterConfig holds content-type routing overrides. Keys are content
// classes (code, prose, multilingual, mixed, unknown).
type RouterConfig struct {
	Table map[string]RouteConfig `yaml:"table"`
}

// RouteConfig is one routing decision.
type RouteConfig struct {
	Model string `yaml:"model"`
	Mode  string `yaml:"mode"`
}

// ScoringConfig holds ranking algorithm parameters.
type ScoringConfig struct {
	RRFK    int     `yaml:"rrf_k"`
	BM25K1  float64 `yaml:"bm25_k1"`
	BM25B   float64 `yaml:"bm25_b"`
	Workers int     `yaml:"workers"`
}

// EvalConfig holds evaluation harness settings.
type EvalConfig struct {
	Workers int `yaml:"workers"`
	TopN    int `yaml:"top_n"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 10000
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Scoring.RRFK <= 0 {
		c.Scoring.RRFK = 60
	}
	if c.Scoring.BM25K1 <= 0 {
		c.Scoring.BM25K1 = 1.2
	}
	if c.Scoring.BM25B <= 0 {
		c.Scoring.BM25B = 0.75
	}
	if c.Scoring.Workers <= 0 {
		c.Scoring.Workers = 8
	}
	if c.Eval.Workers <= 0 {
		c.Eval.Workers = 4
	}
	if c.Eval.TopN <= 0 {
		c.Eval.TopN = 10
	}
}

var validModes = map[string]struct{}{
	"hybrid":   {},
	"semantic": {},
	"keyword":  {},
}

var validClasses = map[string]struct{}{
	"code":         {},
	"prose":        {},
	"multilingual": {},
	"mixed":        {},
	"unknown":      {},
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	for name, m := range c.Models {
		switch m.Provider {
		case "openai", "colbert":
			// ok
		default:
			return fmt.Errorf("models.%s.provider must be \"openai\" or \"colbert\", got %q", name, m.Provider)
		}
		if m.BaseURL == "" {
			return fmt.Errorf("models.%s.base_url is required", name)
		}
		if m.Model == "" {
			return fmt.Errorf("models.%s.model is required", name)
		}
	}
	switch c.Cache.Driver {
	case "redis":
		if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the redis driver")
		}
	case "memory":
		// ok
	default:
		return fmt.Errorf("cache.driver must be \"redis\" or \"memory\", got %q", c.Cache.Driver)
	}
	for class, route := range c.Router.Table {
		if _, ok := validClasses[class]; !ok {
			return fmt.Errorf("router.table key %q is not a content class", class)
		}
		if route.Model != "" {
			if _, ok := c.Models[route.Model]; !ok {
				return fmt.Errorf("router.table.%s.model %q is not a configured model", class, route.Model)
			}
		}
		if route.Mode != "" {
			if _, ok := validModes[route.Mode]; !ok {
				return fmt.Errorf("router.table.%s.mode %q is not a scoring mode", class, route.Mode)
			}
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
