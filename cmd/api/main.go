package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dnguyen/fintext/internal/anomaly"
	"github.com/dnguyen/fintext/internal/api/handlers"
	"github.com/dnguyen/fintext/internal/api/middleware"
	"github.com/dnguyen/fintext/internal/cache"
	"github.com/dnguyen/fintext/internal/category"
	"github.com/dnguyen/fintext/internal/config"
	infraBQ "github.com/dnguyen/fintext/internal/infra/bigquery"
	"github.com/dnguyen/fintext/internal/llm"
	"github.com/dnguyen/fintext/internal/logger"
	"github.com/dnguyen/fintext/internal/parser"
	"github.com/dnguyen/fintext/internal/promptbuild"
	"github.com/dnguyen/fintext/internal/rawstore"
)

// historyWarmupLimit bounds how many past transactions seed the
// category suggester at startup.
const historyWarmupLimit = 200

func main() {
	var (
		port       = flag.String("port", "8080", "HTTP server port")
		configPath = flag.String("config", os.Getenv("FINTEXT_CONFIG"), "Path to YAML config (or set FINTEXT_CONFIG)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if len(cfg.APIKeys) == 0 {
		log.Warn().Msg("No LLM API keys configured - parse requests will fail with 503")
	}

	ctx := context.Background()

	var client llm.Client
	switch cfg.LLMProvider {
	case "anthropic":
		client = llm.NewAnthropicClient(cfg.LLMModel)
	default:
		client = llm.NewGeminiClient(cfg.LLMModel)
	}
	scheduler := llm.NewScheduler(cfg.APIKeys, cfg.RequestsPerSecond, cfg.MaxConcurrent, log)

	var store cache.Store
	if cfg.CachePath != "" {
		bolt, err := cache.NewBolt(cfg.CachePath, log)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CachePath).Msg("Failed to open cache")
		}
		store = bolt
	} else {
		store = cache.NewMemory()
	}
	defer store.Close()

	categories := category.DefaultTaxonomy()
	matcher := category.NewMatcher(categories)

	var history *infraBQ.Repository
	if cfg.BigQueryProject != "" {
		history, err = infraBQ.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create history repository")
		}
		defer history.Close()

		warmMatcher(ctx, history, matcher, log)
	} else {
		log.Warn().Msg("No BigQuery project configured - statistical anomaly checks and audit writes are disabled")
	}

	deps := parser.Deps{
		Scheduler:  scheduler,
		Client:     client,
		Prompts:    promptbuild.NewBuilder(),
		Matcher:    matcher,
		Cache:      store,
		Categories: categories,
		Log:        log,
	}

	var historyReader anomaly.HistoryRepository
	if history != nil {
		historyReader = history
		deps.Audit = history
	}
	deps.Detector = anomaly.NewDetector(historyReader, cfg.LargeAmountThreshold, log)

	if cfg.RawOutputBucket != "" {
		archiver, err := rawstore.NewArchiver(ctx, cfg.RawOutputBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create raw output archiver")
		}
		defer archiver.Close()
		deps.Raw = archiver
	}

	svc := parser.NewService(deps)

	parseHandler := handlers.NewParseHandler(svc, log)
	confirmHandler := handlers.NewConfirmHandler(history, matcher, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/parse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			parseHandler.Parse(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			confirmHandler.Confirm(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			handlers.Health(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:        ":" + *port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE responses stay open for the whole parse.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", *port).
			Str("provider", cfg.LLMProvider).
			Str("model", cfg.LLMModel).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// warmMatcher seeds the category suggester from accepted transactions.
// Failures only cost suggestion quality, never startup.
func warmMatcher(ctx context.Context, history *infraBQ.Repository, matcher *category.Matcher, log zerolog.Logger) {
	examples, err := history.TrainingExamples(ctx, "default", historyWarmupLimit)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load training examples, suggester runs on lexicon only")
		return
	}
	for _, ex := range examples {
		matcher.TrainFromHistory(ex.CategoryID, ex.Description)
	}
	log.Info().Int("examples", len(examples)).Msg("Category suggester warmed from history")
}
