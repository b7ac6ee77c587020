package risposta

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundprediction/risposta"
	"github.com/soundprediction/risposta/pkg/config"
	"github.com/soundprediction/risposta/pkg/retriever"
	"github.com/soundprediction/risposta/pkg/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the risposta HTTP server",
	Long: `Start the risposta HTTP server to answer questions over REST.

The server provides endpoints for:
- Answering ad-hoc questions, with or without caller-supplied passages
- Retrieving ranked passages for a query
- Health checks

A corpus is optional: without one the server only answers questions whose
passages arrive with the request. Configuration can come from config files,
environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
	serveMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server-specific flags
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serveMode, "mode", "debug", "Server mode (debug, release, test)")

	// Dataset and retrieval flags
	serveCmd.Flags().String("corpus", "", "Corpus file to serve retrieval from (.json or .csv)")
	serveCmd.Flags().String("retriever", "", "Retriever provider (bm25, dense, hybrid)")
	serveCmd.Flags().Int("top-k", 0, "Passages retrieved per question")

	// Scorer flags
	serveCmd.Flags().String("scorer-endpoint", "", "Span scoring service endpoint")
	serveCmd.Flags().String("scorer-api-key", "", "Span scoring service API key")

	// Embedding flags
	serveCmd.Flags().String("embedding-provider", "", "Embedding provider (openai, embedeverything)")
	serveCmd.Flags().String("embedding-model", "", "Embedding model")
	serveCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serveCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	// Cache flags
	serveCmd.Flags().String("cache-path", "", "Cache directory for embeddings")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideServeConfigWithFlags(cmd, cfg)

	if err := validateServeConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flushTelemetry()

	store, err := openCacheStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	// A retriever is only built when a corpus is configured; the engine
	// answers caller-supplied passages without one.
	var retrieverClient retriever.Client
	if cfg.Dataset.Corpus != "" {
		retrieverClient, err = buildRetriever(cfg, store, nil)
		if err != nil {
			return err
		}
	}

	scorerClient, err := buildScorer(cfg)
	if err != nil {
		return err
	}

	engine, err := risposta.NewClient(retrieverClient, nil, scorerClient, engineConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	srv := server.New(cfg, engine, log)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())

		// Create shutdown context with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Shutdown server
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		log.Info("server stopped gracefully")
		return nil
	}
}

func overrideServeConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serveMode
	}

	// Dataset and retrieval flags
	if cmd.Flags().Changed("corpus") {
		cfg.Dataset.Corpus, _ = cmd.Flags().GetString("corpus")
	}
	if cmd.Flags().Changed("retriever") {
		cfg.Retriever.Provider, _ = cmd.Flags().GetString("retriever")
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Retriever.TopK, _ = cmd.Flags().GetInt("top-k")
	}

	// Scorer flags
	if cmd.Flags().Changed("scorer-endpoint") {
		cfg.Scorer.Endpoint, _ = cmd.Flags().GetString("scorer-endpoint")
	}
	if cmd.Flags().Changed("scorer-api-key") {
		cfg.Scorer.APIKey, _ = cmd.Flags().GetString("scorer-api-key")
	}

	// Embedding flags
	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	// Cache flags
	if cmd.Flags().Changed("cache-path") {
		cfg.Cache.Path, _ = cmd.Flags().GetString("cache-path")
	}
}

func validateServeConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Retriever.Provider == "static" {
		return fmt.Errorf("the static retriever needs a fixed question set and cannot serve ad-hoc queries")
	}
	if cfg.Scorer.Provider == "http" && cfg.Scorer.Endpoint == "" {
		return fmt.Errorf("a scorer endpoint is required")
	}
	return nil
}
