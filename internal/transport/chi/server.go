// Package chi exposes the ranking pipeline over an HTTP JSON API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/mode"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
	evaluc "github.com/kailas-cloud/rankfuse/internal/usecase/eval"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
	rankinguc "github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
)

// maxCandidates bounds the candidate set accepted per request.
const maxCandidates = 1000

// ErrorCode identifies an API error category in responses.
type ErrorCode string

const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnknownModel      ErrorCode = "unknown_model"
	CodeDimensionMismatch ErrorCode = "dimension_mismatch"
	CodeSpecInvalid       ErrorCode = "spec_invalid"
	CodeEmbeddingFailed   ErrorCode = "embedding_failed"
	CodeModelUnavailable  ErrorCode = "model_unavailable"
	CodeInternalError     ErrorCode = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the HTTP API.
type Server struct {
	ranking       *rankinguc.Service
	harness       *evaluc.Harness
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ranking *rankinguc.Service,
	harness *evaluc.Harness,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ranking: ranking,
		harness: harness,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		dimensionMismatchHandler,
		sentinelHandler(domain.ErrUnknownModel, http.StatusBadRequest, CodeUnknownModel),
		sentinelHandler(domain.ErrEmptyRepresentation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrSpecParse, http.StatusBadRequest, CodeSpecInvalid),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusServiceUnavailable, CodeModelUnavailable),
		sentinelHandler(domain.ErrEmbeddingFailed, http.StatusBadGateway, CodeEmbeddingFailed),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/rank", s.RankDocuments)
	r.Post("/v1/evaluate", s.Evaluate)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type rankDocument struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Corpus string `json:"corpus,omitempty"`
}

type rankRequest struct {
	Query     string         `json:"query"`
	Documents []rankDocument `json:"documents"`
	Model     string         `json:"model,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	AutoRoute bool           `json:"auto_route,omitempty"`
	Corpus    string         `json:"corpus,omitempty"`
	TopK      int            `json:"top_k,omitempty"`
}

type rankResultItem struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
	Flag  string  `json:"flag,omitempty"`
}

type rankResponse struct {
	Results []rankResultItem `json:"results"`
	Model   string           `json:"model"`
	Mode    string           `json:"mode"`
}

// RankDocuments handles POST /v1/rank.
func (s *Server) RankDocuments(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxCandidates {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"documents count must be between 1 and 1000")
		return
	}

	opts, ok := s.optionsFromRequest(w, req.Model, req.Mode, req.AutoRoute, req.Corpus, req.TopK)
	if !ok {
		return
	}

	docs := make([]domain.Document, len(req.Documents))
	for i, d := range req.Documents {
		if d.ID == "" {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "document id is required")
			return
		}
		docs[i] = domain.NewDocument(d.ID, d.Text).WithCorpus(d.Corpus)
	}

	ranking, err := s.ranking.Rank(r.Context(), req.Query, docs, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rankResponse{
		Results: resultItems(ranking.Results),
		Model:   string(ranking.Model),
		Mode:    string(ranking.Mode),
	})
}

type evaluateRequest struct {
	Documents       []evaluc.DocumentSpec `json:"documents"`
	Queries         []evaluc.QuerySpec    `json:"queries"`
	Model           string                `json:"model,omitempty"`
	Mode            string                `json:"mode,omitempty"`
	AutoRoute       bool                  `json:"auto_route,omitempty"`
	IncludeVerdicts bool                  `json:"include_verdicts,omitempty"`
}

type verdictItem struct {
	Query          string           `json:"query"`
	Model          string           `json:"model"`
	Mode           string           `json:"mode"`
	Hit            bool             `json:"hit"`
	ReciprocalRank float64          `json:"reciprocal_rank"`
	Top            []rankResultItem `json:"top,omitempty"`
	Error          string           `json:"error,omitempty"`
}

type evaluateResponse struct {
	PrecisionAt1 float64       `json:"precision_at_1"`
	MRR          float64       `json:"mrr"`
	Evaluated    int           `json:"evaluated"`
	Failed       int           `json:"failed"`
	DurationMs   int64         `json:"duration_ms"`
	Verdicts     []verdictItem `json:"verdicts,omitempty"`
}

// Evaluate handles POST /v1/evaluate. The evaluation specification comes
// inline in the request body.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	spec := evaluc.Spec{Documents: req.Documents, Queries: req.Queries}
	if err := spec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, CodeSpecInvalid, err.Error())
		return
	}

	opts, ok := s.optionsFromRequest(w, req.Model, req.Mode, req.AutoRoute, "", 0)
	if !ok {
		return
	}

	metrics, verdicts, err := s.harness.Run(r.Context(), spec, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := evaluateResponse{
		PrecisionAt1: metrics.PrecisionAt1,
		MRR:          metrics.MRR,
		Evaluated:    metrics.Evaluated,
		Failed:       metrics.Failed,
		DurationMs:   metrics.Duration.Milliseconds(),
	}
	if req.IncludeVerdicts {
		resp.Verdicts = verdictItems(verdicts)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// optionsFromRequest validates model and mode strings and builds ranking
// options. Writes the error response itself and returns ok=false on
// invalid input.
func (s *Server) optionsFromRequest(
	w http.ResponseWriter, model, m string, autoRoute bool, corpus string, topK int,
) (rankinguc.Options, bool) {
	opts := rankinguc.Options{
		AutoRoute: autoRoute,
		CorpusTag: corpus,
		TopK:      topK,
	}

	if model != "" {
		id := domain.ModelID(model)
		if !id.IsValid() {
			writeError(w, http.StatusBadRequest, CodeUnknownModel, "unknown model: "+model)
			return rankinguc.Options{}, false
		}
		opts.Model = id
	}

	if m != "" {
		md := mode.Mode(m)
		if !md.IsValid() {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "unknown scoring mode: "+m)
			return rankinguc.Options{}, false
		}
		opts.Mode = md
	}

	if topK < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "top_k must be non-negative")
		return rankinguc.Options{}, false
	}

	return opts, true
}

func resultItems(results []rank.Result) []rankResultItem {
	items := make([]rankResultItem, len(results))
	for i, res := range results {
		items[i] = rankResultItem{
			ID:    res.ID(),
			Score: res.Score(),
			Rank:  res.Rank(),
			Flag:  res.Flag(),
		}
	}
	return items
}

func verdictItems(verdicts []evaluc.Verdict) []verdictItem {
	items := make([]verdictItem, len(verdicts))
	for i, v := range verdicts {
		item := verdictItem{
			Query:          v.Query,
			Model:          v.Model,
			Mode:           v.Mode,
			Hit:            v.Hit,
			ReciprocalRank: v.ReciprocalRank,
			Top:            resultItems(v.Top),
		}
		if v.Err != nil {
			item.Error = v.Err.Error()
		}
		items[i] = item
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDimensionMismatch,
		domain.ErrEmptyRepresentation,
		domain.ErrUnknownModel,
		domain.ErrSpecParse,
		domain.ErrModelUnavailable,
		domain.ErrEmbeddingFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// dimensionMismatchHandler surfaces the concrete dimensions when available.
func dimensionMismatchHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	var de *domain.DimensionError
	if errors.As(err, &de) {
		writeError(w, http.StatusBadRequest, CodeDimensionMismatch, de.Error())
		return true
	}
	writeError(w, http.StatusBadRequest, CodeDimensionMismatch, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
