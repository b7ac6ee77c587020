package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/risposta/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put and get embedding", func(t *testing.T) {
		store := newTestStore(t)

		vector := []float32{0.1, -0.5, 3.25, 0}
		err := store.PutEmbedding(ctx, "minilm", "What is a fjord?", vector)
		require.NoError(t, err)

		got, ok, err := store.GetEmbedding(ctx, "minilm", "What is a fjord?")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, vector, got)
	})

	t.Run("get missing embedding", func(t *testing.T) {
		store := newTestStore(t)

		got, ok, err := store.GetEmbedding(ctx, "minilm", "never cached")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("embeddings are keyed by model", func(t *testing.T) {
		store := newTestStore(t)

		err := store.PutEmbedding(ctx, "minilm", "shared text", []float32{1, 2})
		require.NoError(t, err)

		_, ok, err := store.GetEmbedding(ctx, "text-embedding-3-small", "shared text")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("save and load checkpoint", func(t *testing.T) {
		store := newTestStore(t)

		checkpoint := &RunCheckpoint{
			RunID:      "run-1",
			QuestionID: "q-42",
			Result: &types.QuestionResult{
				QuestionID: "q-42",
				BestAnswer: "a fjord",
			},
		}

		err := store.SaveCheckpoint(ctx, checkpoint)
		require.NoError(t, err)
		assert.False(t, checkpoint.CreatedAt.IsZero())
		assert.False(t, checkpoint.LastUpdatedAt.IsZero())

		loaded, err := store.LoadCheckpoint(ctx, "run-1", "q-42")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "run-1", loaded.RunID)
		assert.Equal(t, "q-42", loaded.QuestionID)
		require.NotNil(t, loaded.Result)
		assert.Equal(t, "a fjord", loaded.Result.BestAnswer)
		assert.True(t, loaded.Done())
	})

	t.Run("load non-existent checkpoint", func(t *testing.T) {
		store := newTestStore(t)

		loaded, err := store.LoadCheckpoint(ctx, "run-1", "missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("record failure then answer", func(t *testing.T) {
		store := newTestStore(t)

		err := store.RecordFailure(ctx, "run-1", "q-1", errors.New("scorer offline"))
		require.NoError(t, err)
		err = store.RecordFailure(ctx, "run-1", "q-1", errors.New("scorer offline"))
		require.NoError(t, err)

		loaded, err := store.LoadCheckpoint(ctx, "run-1", "q-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, 2, loaded.AttemptCount)
		assert.Contains(t, loaded.LastError, "scorer offline")
		assert.False(t, loaded.Done())
		assert.True(t, loaded.CanRetry(3))
		assert.False(t, loaded.CanRetry(2))

		err = store.RecordAnswer(ctx, "run-1", &types.QuestionResult{QuestionID: "q-1", BestAnswer: "ok"})
		require.NoError(t, err)

		loaded, err = store.LoadCheckpoint(ctx, "run-1", "q-1")
		require.NoError(t, err)
		assert.True(t, loaded.Done())
		assert.Empty(t, loaded.LastError)
		assert.Equal(t, 2, loaded.AttemptCount, "attempt history survives success")
	})

	t.Run("list checkpoints", func(t *testing.T) {
		store := newTestStore(t)

		for i := 0; i < 3; i++ {
			err := store.RecordAnswer(ctx, "run-a", &types.QuestionResult{
				QuestionID: fmt.Sprintf("q-%d", i),
				BestAnswer: "x",
			})
			require.NoError(t, err)
		}
		err := store.RecordAnswer(ctx, "run-b", &types.QuestionResult{QuestionID: "other", BestAnswer: "y"})
		require.NoError(t, err)

		checkpoints, err := store.ListCheckpoints(ctx, "run-a")
		require.NoError(t, err)
		assert.Len(t, checkpoints, 3)
	})

	t.Run("delete run", func(t *testing.T) {
		store := newTestStore(t)

		for i := 0; i < 2; i++ {
			err := store.RecordAnswer(ctx, "run-del", &types.QuestionResult{
				QuestionID: fmt.Sprintf("q-%d", i),
				BestAnswer: "x",
			})
			require.NoError(t, err)
		}
		err := store.RecordAnswer(ctx, "run-keep", &types.QuestionResult{QuestionID: "q-0", BestAnswer: "y"})
		require.NoError(t, err)

		removed, err := store.DeleteRun(ctx, "run-del")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		checkpoints, err := store.ListCheckpoints(ctx, "run-del")
		require.NoError(t, err)
		assert.Empty(t, checkpoints)

		checkpoints, err = store.ListCheckpoints(ctx, "run-keep")
		require.NoError(t, err)
		assert.Len(t, checkpoints, 1)
	})

	t.Run("run stats", func(t *testing.T) {
		store := newTestStore(t)

		err := store.RecordAnswer(ctx, "run-s", &types.QuestionResult{QuestionID: "done", BestAnswer: "x"})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			err = store.RecordFailure(ctx, "run-s", "exhausted", errors.New("boom"))
			require.NoError(t, err)
		}
		err = store.RecordFailure(ctx, "run-s", "retryable", errors.New("boom"))
		require.NoError(t, err)

		stats, err := store.RunStats(ctx, "run-s", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.Answered)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 1, stats.InProgress)
	})
}

func TestStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(Config{Path: dir})
	require.NoError(t, err)

	err = store.PutEmbedding(ctx, "minilm", "persistent text", []float32{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopen and verify the value survived.
	store, err = NewStore(Config{Path: dir})
	require.NoError(t, err)
	defer store.Close()

	got, ok, err := store.GetEmbedding(ctx, "minilm", "persistent text")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)

	assert.NoError(t, store.RunGC())
}

func TestNewStoreRequiresPath(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	badIDs := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"separator", "run:1"},
		{"null byte", "run\x001"},
	}

	for _, tc := range badIDs {
		t.Run("checkpoint_"+tc.name, func(t *testing.T) {
			err := store.SaveCheckpoint(ctx, &RunCheckpoint{RunID: tc.id, QuestionID: "q"})
			assert.ErrorIs(t, err, ErrInvalidKey)

			_, err = store.LoadCheckpoint(ctx, "run", tc.id)
			assert.ErrorIs(t, err, ErrInvalidKey)

			_, err = store.ListCheckpoints(ctx, tc.id)
			assert.ErrorIs(t, err, ErrInvalidKey)

			_, err = store.DeleteRun(ctx, tc.id)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})

		t.Run("embedding_model_"+tc.name, func(t *testing.T) {
			err := store.PutEmbedding(ctx, tc.id, "text", []float32{1})
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}

	// Question text is hashed, so it may contain anything.
	err := store.PutEmbedding(ctx, "minilm", "has : separator and \x00 bytes", []float32{1})
	assert.NoError(t, err)
}

func TestDecodeVectorCorrupt(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3, 4, 5})
	assert.Error(t, err)
}

func TestCheckpointTimestamps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	checkpoint := &RunCheckpoint{RunID: "run-t", QuestionID: "q-t"}
	require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))
	created := checkpoint.CreatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))

	assert.Equal(t, created, checkpoint.CreatedAt, "CreatedAt is stamped once")
	assert.True(t, checkpoint.LastUpdatedAt.After(created))
}
