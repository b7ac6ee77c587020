package scorer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/risposta/pkg/scorer"
	"github.com/soundprediction/risposta/pkg/types"
)

var _ scorer.Client = (*scorer.RetryClient)(nil)

// flakyScorer fails its first n Score calls with a fixed error, then
// succeeds.
type flakyScorer struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	released int
	closed   bool
}

func (f *flakyScorer) Score(ctx context.Context, windows []types.Window) ([]types.WindowScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return make([]types.WindowScore, len(windows)), nil
}

func (f *flakyScorer) ReleaseTransient(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *flakyScorer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *flakyScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetryConfig(maxRetries int) *scorer.RetryConfig {
	return &scorer.RetryConfig{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	flaky := &flakyScorer{failures: 2, err: errors.New("scoring request failed: 503 service unavailable")}
	client := scorer.NewRetryClient(flaky, fastRetryConfig(3))

	scores, err := client.Score(context.Background(), []types.Window{{}, {}})
	require.NoError(t, err)
	assert.Len(t, scores, 2)
	assert.Equal(t, 3, flaky.callCount())
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	transient := errors.New("connection refused")
	flaky := &flakyScorer{failures: 100, err: transient}
	client := scorer.NewRetryClient(flaky, fastRetryConfig(2))

	_, err := client.Score(context.Background(), []types.Window{{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 3, flaky.callCount())
}

func TestRetryNonRetryableFailsFast(t *testing.T) {
	fatal := errors.New("window 0: start scores length 3 does not match window length 5")
	flaky := &flakyScorer{failures: 100, err: fatal}
	client := scorer.NewRetryClient(flaky, fastRetryConfig(3))

	_, err := client.Score(context.Background(), []types.Window{{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, flaky.callCount())
}

func TestRetryBreakerOpenIsRetryable(t *testing.T) {
	flaky := &flakyScorer{failures: 1, err: fmt.Errorf("%w: circuit breaker is open", scorer.ErrUnavailable)}
	client := scorer.NewRetryClient(flaky, fastRetryConfig(2))

	_, err := client.Score(context.Background(), []types.Window{{}})
	require.NoError(t, err)
	assert.Equal(t, 2, flaky.callCount())
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	transient := errors.New("gateway timeout")
	flaky := &flakyScorer{failures: 100, err: transient}
	client := scorer.NewRetryClient(flaky, fastRetryConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Score(ctx, []types.Window{{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 1, flaky.callCount())
}

func TestRetryZeroRetriesMeansSingleAttempt(t *testing.T) {
	flaky := &flakyScorer{failures: 100, err: errors.New("503 service unavailable")}
	client := scorer.NewRetryClient(flaky, fastRetryConfig(0))

	_, err := client.Score(context.Background(), []types.Window{{}})
	require.Error(t, err)
	assert.Equal(t, 1, flaky.callCount())
}

func TestRetryPassthrough(t *testing.T) {
	flaky := &flakyScorer{}
	client := scorer.NewRetryClient(flaky, nil)

	require.NoError(t, client.ReleaseTransient(context.Background()))
	assert.Equal(t, 1, flaky.released)

	require.NoError(t, client.Close())
	assert.True(t, flaky.closed)
}
