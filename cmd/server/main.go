// Command server starts the inference backend.
//
// The backend analyzes submitted documents with a language-model service
// (structured summaries, key points, entities, grounded Q&A, persisted HTML
// reports), streams pipeline progress as server-sent events, and serves
// cached stock metrics for the company watchlist plus a curated news feed.
//
// PostgreSQL (report storage), Redis (shared quote cache), and Kafka
// (analytics events) are all optional: the server runs without them and
// disables the corresponding features.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	apihandler "github.com/robertvmill/inference-backend/internal/api/handler"
	"github.com/robertvmill/inference-backend/internal/api/router"
	"github.com/robertvmill/inference-backend/internal/events"
	"github.com/robertvmill/inference-backend/internal/market"
	"github.com/robertvmill/inference-backend/internal/reports"
	"github.com/robertvmill/inference-backend/internal/research/pending"
	"github.com/robertvmill/inference-backend/internal/research/pipeline"
	"github.com/robertvmill/inference-backend/internal/research/progress"
	"github.com/robertvmill/inference-backend/internal/research/token"
	"github.com/robertvmill/inference-backend/pkg/config"
	"github.com/robertvmill/inference-backend/pkg/health"
	"github.com/robertvmill/inference-backend/pkg/kafka"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/logger"
	"github.com/robertvmill/inference-backend/pkg/metrics"
	"github.com/robertvmill/inference-backend/pkg/postgres"
	"github.com/robertvmill/inference-backend/pkg/redis"
)

func main() {
	// Local development keeps OPENAI_API_KEY and friends in a .env file.
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting inference backend",
		"port", cfg.Server.Port,
		"fast_model", cfg.OpenAI.FastModel,
		"strong_model", cfg.OpenAI.StrongModel,
	)

	m := metrics.New()
	checker := health.NewChecker()

	// Language-model client and tokenizer: both required.
	model, err := llm.New(cfg.OpenAI)
	if err != nil {
		slog.Error("failed to create model client", "error", err)
		os.Exit(1)
	}
	codec, err := token.NewCL100K()
	if err != nil {
		slog.Error("failed to load tokenizer", "error", err)
		os.Exit(1)
	}
	chunker := token.NewChunker(codec)

	pipe := pipeline.New(model, chunker, pipeline.Config{
		FastModel:      cfg.OpenAI.FastModel,
		StrongModel:    cfg.OpenAI.StrongModel,
		MaxChunkTokens: cfg.Pipeline.MaxChunkTokens,
		ChunkThreshold: cfg.Pipeline.ChunkThreshold,
	}, m)

	// In-memory pipeline state.
	pend := pending.NewStore(cfg.Pipeline.PendingTTL)
	defer pend.Close()
	pend.SetSizeObserver(func(n int) { m.PendingAnswers.Set(float64(n)) })
	runs := progress.NewRegistry(cfg.Pipeline.ProgressTTL)

	// PostgreSQL — report storage. Optional.
	var reportStore apihandler.ReportStore
	if db, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("postgres unavailable, report storage disabled", "error", err)
	} else {
		defer db.Close()
		store := reports.NewStore(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			slog.Error("failed to ensure reports schema", "error", err)
			os.Exit(1)
		}
		reportStore = store
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		slog.Info("connected to postgres", "database", cfg.Postgres.Database)
	}

	// Redis — shared quote cache. Optional.
	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, quote cache is process-local only", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := cache.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	// Kafka — analytics event stream. Optional.
	var publisher *events.Publisher
	if cfg.Kafka.Enabled() {
		publisher = events.NewPublisher(kafka.NewProducer(cfg.Kafka))
		defer publisher.Close()
		slog.Info("analytics events enabled", "topic", cfg.Kafka.Topic)
	}

	quotes := market.NewClient(cfg.Market.BaseURL, 0)
	marketSvc := market.NewService(quotes, cfg.Market, cache, m)

	h := apihandler.New(pipe, pend, runs, marketSvc, reportStore, publisher, m)
	chain := router.New(h, checker, m, cfg)

	if cfg.Metrics.Enabled {
		stopMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = stopMetrics(ctx)
		}()
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero so SSE progress streams are not cut off.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("inference backend listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("inference backend stopped")
}
