package retriever

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/utils"
)

// BM25+ parameters. The delta term guarantees that merely containing a query
// term always outweighs not containing it, which plain BM25 does not for
// very long passages.
const (
	DefaultK1    = 1.5
	DefaultB     = 0.75
	DefaultDelta = 1.0
)

// BM25Retriever ranks passages by lexical overlap with the query using BM25+
// term weighting. The whole index lives in memory; it is built once in the
// constructor and read-only afterwards, so Retrieve is safe for concurrent use.
type BM25Retriever struct {
	passages  []types.Passage
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64

	k1    float64
	b     float64
	delta float64
}

// NewBM25Retriever builds an in-memory BM25+ index over the corpus.
// Non-positive parameters take the package defaults.
func NewBM25Retriever(passages []types.Passage, k1, b, delta float64) (*BM25Retriever, error) {
	if len(passages) == 0 {
		return nil, ErrNoPassages
	}
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	if delta <= 0 {
		delta = DefaultDelta
	}

	r := &BM25Retriever{
		passages:  passages,
		termFreqs: make([]map[string]int, len(passages)),
		docLens:   make([]int, len(passages)),
		idf:       make(map[string]float64),
		k1:        k1,
		b:         b,
		delta:     delta,
	}

	docFreqs := make(map[string]int)
	totalLen := 0
	for i, passage := range passages {
		terms := tokenizeTerms(passage.Text)
		freqs := make(map[string]int, len(terms))
		for _, term := range terms {
			freqs[term]++
		}
		for term := range freqs {
			docFreqs[term]++
		}
		r.termFreqs[i] = freqs
		r.docLens[i] = len(terms)
		totalLen += len(terms)
	}

	r.avgDocLen = float64(totalLen) / float64(len(passages))
	if r.avgDocLen == 0 {
		r.avgDocLen = 1 // avoid division by zero for all-empty corpora
	}

	n := float64(len(passages))
	for term, df := range docFreqs {
		r.idf[term] = math.Log((n + 1) / float64(df))
	}

	return r, nil
}

// Retrieve returns the top passages for the query by BM25+ score. Queries
// sharing no vocabulary with the corpus return an empty list.
func (r *BM25Retriever) Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := r.rank(query, limit)
	results := make([]types.Passage, len(ranked))
	for rank, item := range ranked {
		passage := r.passages[item.Item]
		passage.Index = rank
		passage.Score = item.Score
		results[rank] = passage
	}
	return results, nil
}

// rank scores the whole corpus and returns the top corpus indices with their
// scores. Kept separate from Retrieve so hybrid fusion can work on corpus
// positions rather than passage copies.
func (r *BM25Retriever) rank(query string, limit int) []utils.ScoredItem[int] {
	scores := make([]float64, len(r.passages))
	matched := false

	// Query terms are scored per occurrence, so repeating a term weighs it
	// double.
	for _, term := range tokenizeTerms(query) {
		idf, ok := r.idf[term]
		if !ok {
			continue
		}
		matched = true
		for i := range r.passages {
			tf := float64(r.termFreqs[i][term])
			norm := r.k1*(1-r.b+r.b*float64(r.docLens[i])/r.avgDocLen) + tf
			scores[i] += idf * (r.delta + tf*(r.k1+1)/norm)
		}
	}

	if !matched {
		return nil
	}

	items := make([]utils.ScoredItem[int], len(scores))
	for i, score := range scores {
		items[i] = utils.ScoredItem[int]{Item: i, Score: score}
	}
	return utils.TopKByScore(items, limit)
}

// Close is a no-op; the index holds no external resources.
func (r *BM25Retriever) Close() error {
	return nil
}

// tokenizeTerms lowercases and splits on anything that is not a letter or
// digit. Unlike the window tokenizer this keeps no offsets: index terms only
// need to agree between corpus and query.
func tokenizeTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
