package retriever

import (
	"context"

	"github.com/soundprediction/risposta/pkg/types"
)

// StaticRetriever serves a fixed query-to-passages mapping. Evaluation
// datasets that already pair each question with its candidate passages use
// this provider so a run exercises no search at all.
type StaticRetriever struct {
	mapping map[string][]types.Passage
}

// NewStaticRetriever creates a retriever over a fixed mapping keyed by the
// exact query string.
func NewStaticRetriever(mapping map[string][]types.Passage) *StaticRetriever {
	if mapping == nil {
		mapping = map[string][]types.Passage{}
	}
	return &StaticRetriever{mapping: mapping}
}

// Retrieve looks the query up in the mapping. Unknown queries return an
// empty list, not an error; an unanswerable question is a valid outcome.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	passages := r.mapping[query]
	if limit >= 0 && len(passages) > limit {
		passages = passages[:limit]
	}

	results := make([]types.Passage, len(passages))
	for i, passage := range passages {
		passage.Index = i
		results[i] = passage
	}
	return results, nil
}

// Close is a no-op.
func (r *StaticRetriever) Close() error {
	return nil
}
