package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/risposta/pkg/cache"
	"github.com/soundprediction/risposta/pkg/embedder"
	"github.com/soundprediction/risposta/pkg/types"
)

// Client is the interface for passage retrieval backends. Retrieve returns
// at most limit passages ranked by descending relevance; the Index field of
// each returned passage is its 0-based rank in that list.
type Client interface {
	// Retrieve searches the corpus for passages relevant to the query.
	Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error)

	// Close cleans up any resources.
	Close() error
}

// Provider identifies a retrieval backend.
type Provider string

const (
	// ProviderBM25 ranks by lexical overlap using BM25+ term weighting.
	ProviderBM25 Provider = "bm25"
	// ProviderDense ranks by embedding cosine similarity.
	ProviderDense Provider = "dense"
	// ProviderHybrid fuses BM25 and dense rankings with reciprocal rank fusion.
	ProviderHybrid Provider = "hybrid"
	// ProviderStatic serves a fixed query-to-passages mapping. Used for
	// offline evaluation where the retrieval step is already decided.
	ProviderStatic Provider = "static"
	// ProviderMock records queries and returns canned passages for tests.
	ProviderMock Provider = "mock"
)

// Config holds configuration for retrieval clients. Only the fields relevant
// to the chosen provider need to be set.
type Config struct {
	Provider Provider

	// Passages is the corpus searched by the bm25, dense, and hybrid
	// providers, and the canned result list of the mock provider.
	Passages []types.Passage

	// BM25 term weighting. Zero values take the package defaults.
	K1    float64
	B     float64
	Delta float64

	// Embedder powers the dense and hybrid providers.
	Embedder embedder.Client

	// Cache, when set, stores corpus and query embeddings across runs. The
	// store is borrowed, not owned; callers close it themselves.
	Cache *cache.Store

	// Workers bounds the number of concurrent embedding requests during
	// index builds.
	Workers int

	// RankConstant dampens low ranks during hybrid fusion. Zero takes the
	// package default.
	RankConstant int

	// Mapping is the lookup table of the static provider, keyed by query.
	Mapping map[string][]types.Passage
}

// NewClient creates a retrieval client for the configured provider.
func NewClient(config Config) (Client, error) {
	switch config.Provider {
	case ProviderBM25:
		return NewBM25Retriever(config.Passages, config.K1, config.B, config.Delta)
	case ProviderDense:
		return NewDenseRetriever(config.Passages, config.Embedder, config.Cache, config.Workers)
	case ProviderHybrid:
		sparse, err := NewBM25Retriever(config.Passages, config.K1, config.B, config.Delta)
		if err != nil {
			return nil, err
		}
		dense, err := NewDenseRetriever(config.Passages, config.Embedder, config.Cache, config.Workers)
		if err != nil {
			return nil, err
		}
		return NewHybridRetriever(sparse, dense, config.RankConstant), nil
	case ProviderStatic:
		return NewStaticRetriever(config.Mapping), nil
	case ProviderMock:
		return NewMockRetriever(config.Passages), nil
	default:
		return nil, fmt.Errorf("unsupported retriever provider: %s", config.Provider)
	}
}

// Sentinel errors for retriever construction.
var (
	// ErrNoPassages is returned when a corpus-backed provider is configured
	// without passages.
	ErrNoPassages = errors.New("retriever requires a non-empty passage corpus")
	// ErrNoEmbedder is returned when the dense provider is configured
	// without an embedding client.
	ErrNoEmbedder = errors.New("dense retriever requires an embedder")
)
