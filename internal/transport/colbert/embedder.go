// Package colbert provides a multi-vector (per-token) embedding provider
// over a plain HTTP JSON API, for late-interaction scoring.
package colbert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
)

const defaultTimeout = 60 * time.Second

// Embedder is a multi-vector embedding provider. The endpoint is expected
// to return one matrix of token vectors per input text.
type Embedder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	provider   string
	logger     *zap.Logger
}

// Config holds the multi-vector provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewEmbedder creates a multi-vector embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Embedder{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embeddings [][]float32 `json:"embeddings"`
		Index      int         `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements domain.Embedder. Returns a matrix of per-token vectors.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.request(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Representation: res.Representations[0],
		PromptTokens:   res.PromptTokens,
		TotalTokens:    res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.request(ctx, texts)
}

func (e *Embedder) request(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()

	resp, err := e.httpClient.Do(req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "transport").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding request failed: %v: %w", err, domain.ErrModelUnavailable,
		)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, statusError(resp)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "decode").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"decode response: %v: %w", err, domain.ErrEmbeddingFailed,
		)
	}

	if len(parsed.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "short_response").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"%w: %d embeddings for %d texts", domain.ErrEmbeddingFailed, len(parsed.Data), len(texts),
		)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(duration.Seconds())

	if parsed.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.
			WithLabelValues(e.provider, e.model, "prompt").Add(float64(parsed.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.
			WithLabelValues(e.provider, e.model, "total").Add(float64(parsed.Usage.TotalTokens))
	}

	// The endpoint may reorder outputs; restore input order by Index.
	reprs := make([]domain.Representation, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(reprs) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"%w: embedding index %d out of range", domain.ErrEmbeddingFailed, d.Index,
			)
		}
		reprs[d.Index] = domain.MultiVector(d.Embeddings)
	}
	return domain.BatchEmbeddingResult{
		Representations: reprs,
		PromptTokens:    parsed.Usage.PromptTokens,
		TotalTokens:     parsed.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies the endpoint answers on /health.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

func statusError(resp *http.Response) error {
	wrap := domain.ErrEmbeddingFailed
	if resp.StatusCode >= http.StatusInternalServerError {
		wrap = domain.ErrModelUnavailable
	}

	detail := ""
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		var parsed struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
			detail = parsed.Detail
		} else {
			detail = string(body)
		}
	}
	return fmt.Errorf("embedding API error %d: %s: %w", resp.StatusCode, detail, wrap)
}
