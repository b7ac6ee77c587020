package embedder

import (
	"context"
	"fmt"
)

// Client is the interface for text embedding clients.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the number of dimensions in the embeddings.
	Dimensions() int

	// Model returns the name of the underlying embedding model. Vectors from
	// different models are never comparable, so callers use this to namespace
	// cached embeddings.
	Model() string

	// Close cleans up any resources.
	Close() error
}

// Provider identifies an embedding backend.
type Provider string

const (
	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI Provider = "openai"
	// ProviderEmbedEverything uses a local embed-everything model.
	ProviderEmbedEverything Provider = "embedeverything"
	// ProviderMock uses deterministic in-process embeddings for tests.
	ProviderMock Provider = "mock"
)

// Config holds configuration for embedding clients.
type Config struct {
	// Model is the embedding model name.
	Model string
	// BaseURL overrides the provider's API endpoint.
	BaseURL string
	// Dimensions overrides the embedding dimensionality reported by the
	// client. Zero means use the model's default.
	Dimensions int
	// BatchSize caps the number of texts per provider request.
	BatchSize int
}

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultBatchSize caps texts per request when unset.
	DefaultBatchSize = 100
)

// NewClient creates an embedding client for the given provider.
func NewClient(provider Provider, apiKey string, config Config) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(apiKey, config), nil
	case ProviderEmbedEverything:
		return NewEmbedEverythingClient(config)
	case ProviderMock:
		return NewMockEmbedder(config.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", provider)
	}
}
