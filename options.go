package rankfuse

import (
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option func(*engineConfig)

// Endpoint holds connection settings for a hosted embedding model.
type Endpoint struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

type modelSpec struct {
	provider string // "openai", "colbert", "custom"
	endpoint Endpoint
	custom   Embedder
}

type engineConfig struct {
	models      map[string]modelSpec
	cacheDriver string // "" = no cache
	cacheSize   int
	redisAddrs  []string
	redisUser   string
	redisPass   string
	redisDB     int
	rrfK        int
	bm25K1      float64
	bm25B       float64
	workers     int
	evalWorkers int
	evalTopN    int
	routes      map[string]Route
	logger      *zap.Logger
}

// Route overrides the routing decision for one content class
// (code, prose, multilingual, mixed, unknown).
type Route struct {
	Model string
	Mode  string
}

// WithOpenAIModel registers a pooled single-vector model served over an
// OpenAI-compatible API. name must be "general" or "code".
func WithOpenAIModel(name string, ep Endpoint) Option {
	return func(c *engineConfig) {
		c.models[name] = modelSpec{provider: "openai", endpoint: ep}
	}
}

// WithColBERTModel registers a per-token multi-vector model served over a
// plain HTTP JSON endpoint. name must be "general" or "code".
func WithColBERTModel(name string, ep Endpoint) Option {
	return func(c *engineConfig) {
		c.models[name] = modelSpec{provider: "colbert", endpoint: ep}
	}
}

// WithModel registers a custom embedder for a model name. Useful for
// tests and local models.
func WithModel(name string, e Embedder) Option {
	return func(c *engineConfig) {
		c.models[name] = modelSpec{provider: "custom", custom: e}
	}
}

// WithMemoryCache enables in-process embedding caching with an LRU cap.
// size <= 0 uses the default cap.
func WithMemoryCache(size int) Option {
	return func(c *engineConfig) {
		c.cacheDriver = "memory"
		c.cacheSize = size
	}
}

// WithRedisCache enables embedding caching backed by Redis.
func WithRedisCache(addrs []string, username, password string, db int) Option {
	return func(c *engineConfig) {
		c.cacheDriver = "redis"
		c.redisAddrs = addrs
		c.redisUser = username
		c.redisPass = password
		c.redisDB = db
	}
}

// WithRRFK sets the reciprocal rank fusion constant (default 60).
func WithRRFK(k int) Option {
	return func(c *engineConfig) {
		c.rrfK = k
	}
}

// WithBM25 sets the BM25 parameters (defaults k1=1.2, b=0.75).
func WithBM25(k1, b float64) Option {
	return func(c *engineConfig) {
		c.bm25K1 = k1
		c.bm25B = b
	}
}

// WithWorkers bounds concurrent candidate scoring.
func WithWorkers(n int) Option {
	return func(c *engineConfig) {
		c.workers = n
	}
}

// WithEvalWorkers bounds concurrent query evaluation in Evaluate.
func WithEvalWorkers(n int) Option {
	return func(c *engineConfig) {
		c.evalWorkers = n
	}
}

// WithEvalTopN caps the per-query results kept in evaluation verdicts.
func WithEvalTopN(n int) Option {
	return func(c *engineConfig) {
		c.evalTopN = n
	}
}

// WithRoute overrides the routing decision for one content class.
// Empty Model or Mode fields keep the default for that class.
func WithRoute(class string, route Route) Option {
	return func(c *engineConfig) {
		c.routes[class] = route
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}
