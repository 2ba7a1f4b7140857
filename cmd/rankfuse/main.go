package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/rankfuse/internal/config"
	"github.com/kailas-cloud/rankfuse/internal/db"
	dbMemory "github.com/kailas-cloud/rankfuse/internal/db/memory"
	dbRedis "github.com/kailas-cloud/rankfuse/internal/db/redis"
	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/mode"
	logpkg "github.com/kailas-cloud/rankfuse/internal/logger"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
	"github.com/kailas-cloud/rankfuse/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/rankfuse/internal/transport/chi"
	colbertEmb "github.com/kailas-cloud/rankfuse/internal/transport/colbert"
	openaiEmb "github.com/kailas-cloud/rankfuse/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/rankfuse/internal/usecase/embedding"
	evaluc "github.com/kailas-cloud/rankfuse/internal/usecase/eval"
	"github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
	"github.com/kailas-cloud/rankfuse/internal/usecase/keyword"
	rankinguc "github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
	"github.com/kailas-cloud/rankfuse/internal/usecase/router"
	"github.com/kailas-cloud/rankfuse/internal/usecase/semantic"
	"github.com/kailas-cloud/rankfuse/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "rankfuse",
		Usage:   "Hybrid relevance ranking: semantic + BM25 + reciprocal rank fusion",
		Version: fmt.Sprintf("%s (%s)", version.Version, version.Commit),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
			},
			{
				Name:   "rank",
				Usage:  "Rank a document file against one query",
				Action: rankCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "docs",
						Aliases:  []string{"d"},
						Usage:    "Path to a YAML/JSON document file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Embedding model (general, code)",
					},
					&cli.BoolFlag{
						Name:  "hybrid",
						Usage: "Fuse semantic and keyword rankings",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "auto-model",
						Usage: "Let the router pick model and mode from content",
					},
					&cli.StringFlag{
						Name:  "corpus",
						Usage: "Corpus tag fed to the router",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Truncate output to the top K results (0 = all)",
					},
				},
			},
			{
				Name:   "eval",
				Usage:  "Evaluate a labeled query set and report P@1 / MRR",
				Action: evalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "spec",
						Aliases:  []string{"s"},
						Usage:    "Path to the evaluation specification (YAML or JSON)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Embedding model (general, code)",
					},
					&cli.BoolFlag{
						Name:  "hybrid",
						Usage: "Fuse semantic and keyword rankings",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "auto-model",
						Usage: "Let the router pick model and mode from content",
					},
					&cli.BoolFlag{
						Name:  "verdicts",
						Usage: "Print per-query verdicts",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent query evaluation (0 = config default)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pipeline is the composition root shared by all commands.
type pipeline struct {
	cfg      config.Config
	logger   *zap.Logger
	store    db.Store
	ranking  *rankinguc.Service
	harness  *evaluc.Harness
	checkers map[string]healthuc.ModelChecker
}

func (p *pipeline) close() {
	if p.store != nil {
		p.store.Close()
	}
	_ = p.logger.Sync()
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRankingMetrics()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedders := make(map[domain.ModelID]domain.Embedder, len(cfg.Models))
	checkers := make(map[string]healthuc.ModelChecker, len(cfg.Models))
	for name, mc := range cfg.Models {
		id := domain.ModelID(name)
		if !id.IsValid() {
			if store != nil {
				store.Close()
			}
			return nil, fmt.Errorf("config model %q: %w", name, domain.ErrUnknownModel)
		}
		emb, checker := buildEmbedder(id, mc, store, logger)
		embedders[id] = emb
		checkers[name] = checker
		logger.Info("Embedder created",
			zap.String("name", name),
			zap.String("provider", mc.Provider),
			zap.String("model", mc.Model),
		)
	}

	table := router.DefaultTable()
	for class, route := range cfg.Router.Table {
		decision := table[router.Class(class)]
		if route.Model != "" {
			decision.Model = domain.ModelID(route.Model)
		}
		if route.Mode != "" {
			decision.Mode = mode.Mode(route.Mode)
		}
		table[router.Class(class)] = decision
	}

	ranking := rankinguc.New(
		embedders,
		semantic.New(cfg.Scoring.Workers),
		keyword.New(cfg.Scoring.BM25K1, cfg.Scoring.BM25B),
		fusion.New(cfg.Scoring.RRFK),
		router.New(table, router.NewHeuristicClassifier()),
		logger,
	)

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		ranking:  ranking,
		harness:  evaluc.New(ranking, cfg.Eval.Workers, cfg.Eval.TopN, logger),
		checkers: checkers,
	}, nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	switch cfg.Cache.Driver {
	case "memory":
		store, err := dbMemory.NewStore(cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("create memory store: %w", err)
		}
		return store, nil
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// buildEmbedder assembles the decorator chain: provider -> Instrumented -> Cached.
func buildEmbedder(
	id domain.ModelID,
	mc config.ModelConfig,
	store db.Store,
	logger *zap.Logger,
) (domain.Embedder, healthuc.ModelChecker) {
	var base domain.Embedder
	var checker healthuc.ModelChecker

	switch mc.Provider {
	case "colbert":
		e := colbertEmb.NewEmbedder(&colbertEmb.Config{
			APIKey:   mc.APIKey,
			BaseURL:  mc.BaseURL,
			Model:    mc.Model,
			Provider: mc.Provider,
			Logger:   logger,
		})
		base, checker = e, e
	default:
		e := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     mc.APIKey,
			BaseURL:    mc.BaseURL,
			Model:      mc.Model,
			Dimensions: mc.Dimensions,
			Provider:   mc.Provider,
			Logger:     logger,
		})
		base, checker = e, e
	}

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(base, mc.Provider, mc.Model, logger)
	if store != nil {
		embedder = embcache.New(embedder, id, store, metrics.EmbeddingCacheTotal, logger)
	}
	return embedder, checker
}

func rankOptions(c *cli.Context, corpus string, topK int) rankinguc.Options {
	opts := rankinguc.Options{
		Model:     domain.ModelID(c.String("model")),
		AutoRoute: c.Bool("auto-model"),
		CorpusTag: corpus,
		TopK:      topK,
	}
	// The hybrid flag defaults to on; turning it off without auto-routing
	// pins semantic-only scoring.
	if !c.Bool("hybrid") {
		opts.Mode = mode.Semantic
	} else if c.IsSet("hybrid") {
		opts.Mode = mode.Hybrid
	}
	return opts
}

// docFile is a ranked document file for the rank command.
type docFile struct {
	Documents []evaluc.DocumentSpec `yaml:"documents" json:"documents"`
}

func rankCommand(c *cli.Context) error {
	p, err := buildPipeline(c.Context)
	if err != nil {
		return err
	}
	defer p.close()

	data, err := os.ReadFile(c.String("docs"))
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}
	var file docFile
	if err := unmarshalByExt(c.String("docs"), data, &file); err != nil {
		return fmt.Errorf("parse documents: %w", err)
	}
	if len(file.Documents) == 0 {
		return fmt.Errorf("no documents in %s", c.String("docs"))
	}

	docs := make([]domain.Document, len(file.Documents))
	for i, d := range file.Documents {
		docs[i] = domain.NewDocument(d.ID, d.Text).WithCorpus(d.Corpus)
	}

	opts := rankOptions(c, c.String("corpus"), c.Int("top-k"))
	ranking, err := p.ranking.Rank(c.Context, c.String("query"), docs, opts)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	fmt.Printf("model=%s mode=%s\n", ranking.Model, ranking.Mode)
	for _, r := range ranking.Results {
		line := fmt.Sprintf("%3d  %-30s %.6f", r.Rank(), r.ID(), r.Score())
		if r.Flag() != "" {
			line += "  [" + r.Flag() + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func evalCommand(c *cli.Context) error {
	p, err := buildPipeline(c.Context)
	if err != nil {
		return err
	}
	defer p.close()

	spec, err := evaluc.Load(c.String("spec"))
	if err != nil {
		return err
	}

	harness := p.harness
	if c.Int("workers") > 0 {
		harness = evaluc.New(p.ranking, c.Int("workers"), p.cfg.Eval.TopN, p.logger)
	}

	opts := rankOptions(c, "", 0)
	m, verdicts, err := harness.Run(c.Context, spec, opts)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	fmt.Printf("queries:   %d evaluated, %d failed\n", m.Evaluated, m.Failed)
	fmt.Printf("P@1:       %.4f\n", m.PrecisionAt1)
	fmt.Printf("MRR:       %.4f\n", m.MRR)
	fmt.Printf("duration:  %s\n", m.Duration.Round(time.Millisecond))

	if c.Bool("verdicts") {
		fmt.Println()
		for _, v := range verdicts {
			if v.Err != nil {
				fmt.Printf("FAIL  %-40q %v\n", v.Query, v.Err)
				continue
			}
			mark := " "
			if v.Hit {
				mark = "*"
			}
			fmt.Printf("%s     %-40q rr=%.4f model=%s mode=%s\n",
				mark, v.Query, v.ReciprocalRank, v.Model, v.Mode)
		}
	}

	for _, v := range verdicts {
		if v.Err != nil && !c.Bool("verdicts") {
			fmt.Printf("failed query %q: %v\n", v.Query, v.Err)
		}
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	p, err := buildPipeline(c.Context)
	if err != nil {
		return err
	}
	defer p.close()

	cfg, logger := p.cfg, p.logger

	logger.Info("Starting rankfuse API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	var storePinger healthuc.StorePinger
	if p.store != nil {
		storePinger = p.store
	}
	healthSvc := healthuc.New(storePinger, p.checkers)

	server := chiTransport.NewServer(p.ranking, p.harness, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func unmarshalByExt(path string, data []byte, v any) error {
	if strings.HasSuffix(path, ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
