package retriever

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundprediction/risposta/pkg/cache"
	"github.com/soundprediction/risposta/pkg/embedder"
	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/utils"
)

// indexBatchSize is how many passages each index-build worker embeds per
// request.
const indexBatchSize = 32

// DenseRetriever ranks passages by cosine similarity between query and
// passage embeddings. The corpus is embedded lazily on the first Retrieve
// call, in parallel batches, consulting the embedding cache when one is
// configured.
type DenseRetriever struct {
	passages []types.Passage
	embedder embedder.Client
	cache    *cache.Store
	workers  int

	mu      sync.Mutex
	vectors [][]float32
}

// NewDenseRetriever creates a dense retriever over the corpus. The embedder
// is owned by the retriever and closed with it; the cache is borrowed.
func NewDenseRetriever(passages []types.Passage, embedderClient embedder.Client, cacheStore *cache.Store, workers int) (*DenseRetriever, error) {
	if len(passages) == 0 {
		return nil, ErrNoPassages
	}
	if embedderClient == nil {
		return nil, ErrNoEmbedder
	}
	if workers <= 0 {
		workers = utils.DefaultWorkers
	}

	return &DenseRetriever{
		passages: passages,
		embedder: embedderClient,
		cache:    cacheStore,
		workers:  workers,
	}, nil
}

// Retrieve embeds the query and returns the most similar passages.
func (r *DenseRetriever) Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	ranked, err := r.rankDense(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]types.Passage, len(ranked))
	for rank, item := range ranked {
		passage := r.passages[item.Item]
		passage.Index = rank
		passage.Score = item.Score
		results[rank] = passage
	}
	return results, nil
}

func (r *DenseRetriever) rankDense(ctx context.Context, query string, limit int) ([]utils.ScoredItem[int], error) {
	vectors, err := r.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	queryVec, err := r.embedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	items := make([]utils.ScoredItem[int], len(vectors))
	for i, vec := range vectors {
		items[i] = utils.ScoredItem[int]{Item: i, Score: utils.CosineSimilarity(queryVec, vec)}
	}
	return utils.TopKByScore(items, limit), nil
}

// ensureIndex embeds the corpus on first use. A failed build is retried on
// the next call rather than latched.
func (r *DenseRetriever) ensureIndex(ctx context.Context) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vectors != nil {
		return r.vectors, nil
	}

	vectors, err := r.buildIndex(ctx)
	if err != nil {
		return nil, err
	}
	r.vectors = vectors
	return vectors, nil
}

func (r *DenseRetriever) buildIndex(ctx context.Context) ([][]float32, error) {
	vectors := make([][]float32, len(r.passages))

	var missing []int
	if r.cache != nil {
		model := r.embedder.Model()
		for i, passage := range r.passages {
			vec, ok, err := r.cache.GetEmbedding(ctx, model, passage.Text)
			if err == nil && ok {
				vectors[i] = vec
				continue
			}
			// Cache trouble degrades to a re-embed, never a failed build.
			missing = append(missing, i)
		}
	} else {
		missing = make([]int, len(r.passages))
		for i := range missing {
			missing[i] = i
		}
	}

	if len(missing) > 0 {
		batches := utils.Batch(missing, indexBatchSize)
		pool := utils.NewWorkerPool(r.workers, func(ctx context.Context, batch []int) ([][]float32, error) {
			texts := make([]string, len(batch))
			for j, idx := range batch {
				texts[j] = r.passages[idx].Text
			}
			return r.embedder.Embed(ctx, texts)
		})

		results, errs := pool.ProcessItems(ctx, batches)
		for i, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("failed to embed passage batch %d: %w", i, err)
			}
			if len(results[i]) != len(batches[i]) {
				return nil, fmt.Errorf("embedder returned %d vectors for batch of %d", len(results[i]), len(batches[i]))
			}
		}

		model := r.embedder.Model()
		for bi, batch := range batches {
			for j, idx := range batch {
				vectors[idx] = results[bi][j]
				if r.cache != nil {
					// Best effort; a full cache never blocks retrieval.
					_ = r.cache.PutEmbedding(ctx, model, r.passages[idx].Text, vectors[idx])
				}
			}
		}
	}

	return vectors, nil
}

// embedText fetches a single embedding, reading and populating the cache
// when one is configured.
func (r *DenseRetriever) embedText(ctx context.Context, text string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok, err := r.cache.GetEmbedding(ctx, r.embedder.Model(), text); err == nil && ok {
			return vec, nil
		}
	}

	vec, err := r.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.PutEmbedding(ctx, r.embedder.Model(), text, vec)
	}
	return vec, nil
}

// Close releases the underlying embedder.
func (r *DenseRetriever) Close() error {
	return r.embedder.Close()
}
