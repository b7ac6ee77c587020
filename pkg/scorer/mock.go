package scorer

import (
	"context"
	"sync"

	"github.com/soundprediction/risposta/pkg/types"
)

// MockConfig holds configuration for the mock scorer.
type MockConfig struct {
	// ScoreFunc overrides the default deterministic scoring. It receives one
	// window and must return score arrays matching the window length.
	ScoreFunc func(w types.Window) types.WindowScore
}

// MockClient is a deterministic in-process scorer for tests and examples.
// Without a ScoreFunc it produces stable pseudo-scores derived from token
// ids, so repeated runs over the same input yield identical results.
type MockClient struct {
	config MockConfig

	mu           sync.Mutex
	batchSizes   []int
	releaseCalls int
	closed       bool
}

// NewMockClient creates a mock scorer client.
func NewMockClient(config MockConfig) *MockClient {
	return &MockClient{config: config}
}

// Score returns deterministic scores for each window.
func (m *MockClient) Score(ctx context.Context, windows []types.Window) ([]types.WindowScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(windows))
	m.mu.Unlock()

	scores := make([]types.WindowScore, len(windows))
	for i, w := range windows {
		if m.config.ScoreFunc != nil {
			scores[i] = m.config.ScoreFunc(w)
			continue
		}
		scores[i] = defaultScores(w)
	}
	return scores, nil
}

// ReleaseTransient records the release call and succeeds.
func (m *MockClient) ReleaseTransient(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	return nil
}

// Close marks the client closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// BatchSizes returns the size of every batch received, in call order.
func (m *MockClient) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batchSizes))
	copy(out, m.batchSizes)
	return out
}

// ReleaseCalls returns how many times ReleaseTransient was invoked.
func (m *MockClient) ReleaseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseCalls
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// defaultScores derives stable pseudo-scores from token ids. Padding
// positions score strongly negative so the argmax stays on real tokens.
func defaultScores(w types.Window) types.WindowScore {
	s := types.WindowScore{
		Start: make([]float64, len(w.TokenIDs)),
		End:   make([]float64, len(w.TokenIDs)),
	}
	for i, id := range w.TokenIDs {
		if w.AttentionMask[i] == 0 {
			s.Start[i] = -1e4
			s.End[i] = -1e4
			continue
		}
		s.Start[i] = float64((id*31+i*7)%13) - 6.0
		s.End[i] = float64((id*17+i*11)%13) - 6.0
	}
	return s
}
