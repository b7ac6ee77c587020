package risposta

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/soundprediction/risposta"
	"github.com/soundprediction/risposta/pkg/alert"
	"github.com/soundprediction/risposta/pkg/cache"
	"github.com/soundprediction/risposta/pkg/config"
	"github.com/soundprediction/risposta/pkg/dataset"
	"github.com/soundprediction/risposta/pkg/embedder"
	"github.com/soundprediction/risposta/pkg/logger"
	"github.com/soundprediction/risposta/pkg/retriever"
	"github.com/soundprediction/risposta/pkg/scorer"
	"github.com/soundprediction/risposta/pkg/telemetry"
	"github.com/soundprediction/risposta/pkg/types"
)

// Shared construction helpers for the run, serve, and retrieve commands.
// Each one turns a slice of the loaded configuration into a ready client.

// telemetryHandler captures error events when telemetry is configured; the
// commands flush it before exiting.
var telemetryHandler *telemetry.ParquetHandler

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var handler slog.Handler = logger.NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	})
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		telemetryHandler = parquetHandler
		handler = parquetHandler
	}
	return slog.New(handler), nil
}

func flushTelemetry() {
	if telemetryHandler == nil {
		return
	}
	if err := telemetryHandler.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to flush telemetry:", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openCacheStore opens the configured cache, or returns nil when caching is
// disabled. Callers own the returned store and must close it.
func openCacheStore(cfg *config.Config) (*cache.Store, error) {
	if !cfg.Cache.Enabled() {
		return nil, nil
	}
	store, err := cache.NewStore(cache.Config{
		Path:     cfg.Cache.Path,
		InMemory: cfg.Cache.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return store, nil
}

func buildEmbedder(cfg *config.Config) (embedder.Client, error) {
	return embedder.NewClient(
		embedder.Provider(cfg.Embedding.Provider),
		cfg.Embedding.APIKey,
		embedder.Config{
			Model:   cfg.Embedding.Model,
			BaseURL: cfg.Embedding.BaseURL,
		},
	)
}

// buildRetriever constructs the configured retrieval backend. The static
// provider resolves its per-question passage lists against the given question
// set; the other providers ignore it.
func buildRetriever(cfg *config.Config, store *cache.Store, questions []types.Question) (retriever.Client, error) {
	provider := retriever.Provider(cfg.Retriever.Provider)

	switch provider {
	case retriever.ProviderStatic:
		if cfg.Dataset.Retrievals == "" {
			return nil, fmt.Errorf("static retrieval requires a retrievals file")
		}
		if len(questions) == 0 {
			return nil, fmt.Errorf("static retrieval requires a question set")
		}
		retrievals, err := dataset.LoadRetrievals(cfg.Dataset.Retrievals)
		if err != nil {
			return nil, err
		}
		mapping, err := dataset.StaticMapping(questions, retrievals)
		if err != nil {
			return nil, err
		}
		return retriever.NewClient(retriever.Config{
			Provider: retriever.ProviderStatic,
			Mapping:  mapping,
		})

	case retriever.ProviderBM25:
		corpus, err := dataset.LoadCorpus(cfg.Dataset.Corpus)
		if err != nil {
			return nil, err
		}
		return retriever.NewClient(retriever.Config{
			Provider: retriever.ProviderBM25,
			Passages: corpus,
			K1:       cfg.Retriever.K1,
			B:        cfg.Retriever.B,
			Delta:    cfg.Retriever.Delta,
		})

	case retriever.ProviderDense, retriever.ProviderHybrid:
		corpus, err := dataset.LoadCorpus(cfg.Dataset.Corpus)
		if err != nil {
			return nil, err
		}
		embedderClient, err := buildEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return retriever.NewClient(retriever.Config{
			Provider:     provider,
			Passages:     corpus,
			K1:           cfg.Retriever.K1,
			B:            cfg.Retriever.B,
			Delta:        cfg.Retriever.Delta,
			Embedder:     embedderClient,
			Cache:        store,
			Workers:      cfg.Retriever.Workers,
			RankConstant: cfg.Retriever.RankConstant,
		})

	default:
		return nil, fmt.Errorf("unsupported retriever provider: %s", cfg.Retriever.Provider)
	}
}

func buildScorer(cfg *config.Config) (scorer.Client, error) {
	switch scorer.Provider(cfg.Scorer.Provider) {
	case scorer.ProviderHTTP:
		client, err := scorer.NewClient(scorer.Config{
			Provider: scorer.ProviderHTTP,
			HTTP: &scorer.HTTPConfig{
				Endpoint: cfg.Scorer.Endpoint,
				APIKey:   cfg.Scorer.APIKey,
				Timeout:  time.Duration(cfg.Scorer.Timeout) * time.Second,
				Alerter:  alert.New(cfg.Alert),
			},
		})
		if err != nil {
			return nil, err
		}
		// Wrap with retry client for automatic retry on transient errors
		retryConfig := scorer.DefaultRetryConfig()
		retryConfig.MaxRetries = cfg.Scorer.MaxRetries
		return scorer.NewRetryClient(client, retryConfig), nil
	case scorer.ProviderMock:
		return scorer.NewClient(scorer.Config{Provider: scorer.ProviderMock})
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", cfg.Scorer.Provider)
	}
}

func engineConfig(cfg *config.Config) *risposta.Config {
	return &risposta.Config{
		MaxLength:       cfg.Engine.MaxLength,
		Stride:          cfg.Engine.Stride,
		BatchSize:       cfg.Engine.BatchSize,
		TopK:            cfg.Retriever.TopK,
		NBestSize:       cfg.Engine.NBestSize,
		MaxAnswerLength: cfg.Engine.MaxAnswerLength,
	}
}
