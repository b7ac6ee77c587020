package scorer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/risposta/pkg/scorer"
	"github.com/soundprediction/risposta/pkg/types"
)

var (
	_ scorer.Client = (*scorer.HTTPClient)(nil)
	_ scorer.Client = (*scorer.MockClient)(nil)
)

func testWindow(n int) types.Window {
	w := types.Window{
		TokenIDs:      make([]int, n),
		AttentionMask: make([]int, n),
		Offsets:       make([]types.Offset, n),
	}
	for i := range w.TokenIDs {
		w.TokenIDs[i] = 1000 + i
		w.AttentionMask[i] = 1
	}
	return w
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  scorer.Config
		wantErr bool
	}{
		{
			name: "http provider",
			config: scorer.Config{
				Provider: scorer.ProviderHTTP,
				HTTP:     &scorer.HTTPConfig{Endpoint: "http://localhost:9090"},
			},
		},
		{
			name:    "http provider without config",
			config:  scorer.Config{Provider: scorer.ProviderHTTP},
			wantErr: true,
		},
		{
			name:   "mock provider",
			config: scorer.Config{Provider: scorer.ProviderMock},
		},
		{
			name:    "unsupported provider",
			config:  scorer.Config{Provider: "onnx"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := scorer.NewClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.NoError(t, client.Close())
		})
	}
}

func TestMockClientDeterministic(t *testing.T) {
	client := scorer.NewMockClient(scorer.MockConfig{})
	ctx := context.Background()

	w := testWindow(8)
	first, err := client.Score(ctx, []types.Window{w})
	require.NoError(t, err)
	second, err := client.Score(ctx, []types.Window{w})
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Len(t, first[0].Start, 8)
	assert.Len(t, first[0].End, 8)

	assert.Equal(t, []int{1, 1}, client.BatchSizes())

	require.NoError(t, client.ReleaseTransient(ctx))
	assert.Equal(t, 1, client.ReleaseCalls())
}

func TestMockClientPaddingScores(t *testing.T) {
	client := scorer.NewMockClient(scorer.MockConfig{})

	w := testWindow(4)
	w.AttentionMask[3] = 0
	scores, err := client.Score(context.Background(), []types.Window{w})
	require.NoError(t, err)

	// Padding positions never win an argmax over attended ones.
	assert.Less(t, scores[0].Start[3], scores[0].Start[0])
	assert.Less(t, scores[0].End[3], scores[0].End[0])
}

func TestMockClientScoreFunc(t *testing.T) {
	client := scorer.NewMockClient(scorer.MockConfig{
		ScoreFunc: func(w types.Window) types.WindowScore {
			s := types.WindowScore{
				Start: make([]float64, len(w.TokenIDs)),
				End:   make([]float64, len(w.TokenIDs)),
			}
			s.Start[2] = 5.0
			s.End[3] = 4.0
			return s
		},
	})

	scores, err := client.Score(context.Background(), []types.Window{testWindow(6)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, scores[0].Start[2])
	assert.Equal(t, 4.0, scores[0].End[3])
}

func TestHTTPClientScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/score", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Sequences []struct {
				TokenIDs      []int `json:"token_ids"`
				AttentionMask []int `json:"attention_mask"`
			} `json:"sequences"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Sequences, 2)

		scores := make([]map[string]any, 0, len(req.Sequences))
		for _, seq := range req.Sequences {
			start := make([]float64, len(seq.TokenIDs))
			end := make([]float64, len(seq.TokenIDs))
			start[1] = 3.5
			end[2] = 2.5
			scores = append(scores, map[string]any{"start": start, "end": end})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"scores": scores}))
	}))
	defer srv.Close()

	client, err := scorer.NewHTTPClient(scorer.HTTPConfig{Endpoint: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	defer client.Close()

	windows := []types.Window{testWindow(5), testWindow(5)}
	scores, err := client.Score(context.Background(), windows)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 3.5, scores[0].Start[1])
	assert.Equal(t, 2.5, scores[1].End[2])
}

func TestHTTPClientScoreEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	}))
	defer srv.Close()

	client, err := scorer.NewHTTPClient(scorer.HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	scores, err := client.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestHTTPClientScoreLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"scores": []map[string]any{
			{"start": []float64{0, 0}, "end": []float64{0, 0}},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client, err := scorer.NewHTTPClient(scorer.HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Score(context.Background(), []types.Window{testWindow(2), testWindow(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score pairs")
}

func TestHTTPClientCircuitBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"model crashed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := scorer.NewHTTPClient(scorer.HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	windows := []types.Window{testWindow(2)}
	for i := 0; i < 3; i++ {
		_, err = client.Score(context.Background(), windows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model crashed")
	}

	// Three straight failures trip the breaker; the next call is rejected
	// locally without reaching the server.
	_, err = client.Score(context.Background(), windows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scorer.ErrUnavailable))
}

func TestHTTPClientReleaseTransient(t *testing.T) {
	var released bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/release", r.URL.Path)
		released = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := scorer.NewHTTPClient(scorer.HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.ReleaseTransient(context.Background()))
	assert.True(t, released)
}

func TestHTTPClientHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := scorer.NewHTTPClient(scorer.HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Health(context.Background()))
}
