package retriever

import (
	"context"
	"sync"

	"github.com/soundprediction/risposta/pkg/types"
)

// MockRetriever returns a canned passage list for every query and records
// the queries it sees. Tests use it to drive the answering pipeline without
// a corpus.
type MockRetriever struct {
	mu       sync.Mutex
	passages []types.Passage
	queries  []string
	err      error
	closed   bool
}

// NewMockRetriever creates a mock that answers every query with the given
// passages, truncated to the requested limit.
func NewMockRetriever(passages []types.Passage) *MockRetriever {
	return &MockRetriever{passages: passages}
}

// SetError makes every subsequent Retrieve call fail with err.
func (m *MockRetriever) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Retrieve records the query and returns the canned passages.
func (m *MockRetriever) Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}

	passages := m.passages
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

// Queries returns the queries seen so far.
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// Closed reports whether Close has been called.
func (m *MockRetriever) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close records the call.
func (m *MockRetriever) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
