package retriever

import (
	"context"
	"sort"

	"github.com/soundprediction/risposta/pkg/types"
)

// DefaultRankConstant dampens the contribution of low-ranked passages during
// reciprocal rank fusion. 60 is the value from the original RRF paper and
// works well without tuning.
const DefaultRankConstant = 60

// HybridRetriever fuses BM25 and dense rankings with reciprocal rank fusion:
// each passage scores the sum of 1/(rank + rankConstant) over the lists it
// appears in. Passages ranked well by either signal surface; passages ranked
// well by both surface first.
type HybridRetriever struct {
	sparse       *BM25Retriever
	dense        *DenseRetriever
	rankConstant int
}

// NewHybridRetriever combines a BM25 and a dense retriever built over the
// same corpus. A non-positive rankConstant takes the default.
func NewHybridRetriever(sparse *BM25Retriever, dense *DenseRetriever, rankConstant int) *HybridRetriever {
	if rankConstant <= 0 {
		rankConstant = DefaultRankConstant
	}
	return &HybridRetriever{
		sparse:       sparse,
		dense:        dense,
		rankConstant: rankConstant,
	}
}

// Retrieve fuses both rankings and returns the top passages. Each side is
// over-fetched to twice the limit so a passage missed by one signal can
// still make the fused cut.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	if limit <= 0 {
		return []types.Passage{}, nil
	}
	candidateLimit := limit * 2

	sparseRanked := r.sparse.rank(query, candidateLimit)
	denseRanked, err := r.dense.rankDense(ctx, query, candidateLimit)
	if err != nil {
		return nil, err
	}

	scores := make(map[int]float64)
	for rank, item := range sparseRanked {
		scores[item.Item] += 1.0 / float64(rank+r.rankConstant)
	}
	for rank, item := range denseRanked {
		scores[item.Item] += 1.0 / float64(rank+r.rankConstant)
	}

	fused := make([]fusedCandidate, 0, len(scores))
	for idx, score := range scores {
		fused = append(fused, fusedCandidate{index: idx, score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		// Equal fused scores fall back to corpus order for determinism.
		return fused[i].index < fused[j].index
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}

	results := make([]types.Passage, len(fused))
	for rank, candidate := range fused {
		passage := r.sparse.passages[candidate.index]
		passage.Index = rank
		passage.Score = candidate.score
		results[rank] = passage
	}
	return results, nil
}

type fusedCandidate struct {
	index int
	score float64
}

// Close releases the dense side; the BM25 index holds no resources.
func (r *HybridRetriever) Close() error {
	return r.dense.Close()
}
