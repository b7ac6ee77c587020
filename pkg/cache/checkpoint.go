package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/soundprediction/risposta/pkg/types"
)

// RunCheckpoint records the state of one question within a batch run. A
// checkpoint with a non-nil Result is finished; one without records a
// failed attempt that may be retried on resume.
type RunCheckpoint struct {
	RunID      string `json:"run_id"`
	QuestionID string `json:"question_id"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`

	Result *types.QuestionResult `json:"result,omitempty"`
}

// Done reports whether the question has been answered.
func (c *RunCheckpoint) Done() bool {
	return c.Result != nil
}

// CanRetry determines if a failed checkpoint should be retried based on
// attempt count.
func (c *RunCheckpoint) CanRetry(maxAttempts int) bool {
	return !c.Done() && c.AttemptCount < maxAttempts
}

func checkpointKey(runID, questionID string) ([]byte, error) {
	if err := validateKeyPart(runID); err != nil {
		return nil, fmt.Errorf("run %q: %w", runID, err)
	}
	if err := validateKeyPart(questionID); err != nil {
		return nil, fmt.Errorf("question %q: %w", questionID, err)
	}
	return []byte(checkpointPrefix + runID + keySeparator + questionID), nil
}

// SaveCheckpoint persists a checkpoint, stamping LastUpdatedAt.
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *RunCheckpoint) error {
	key, err := checkpointKey(checkpoint.RunID, checkpoint.QuestionID)
	if err != nil {
		return err
	}

	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = time.Now()
	}
	checkpoint.LastUpdatedAt = time.Now()

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// LoadCheckpoint retrieves a checkpoint. Returns (nil, nil) when no
// checkpoint exists for the question.
func (s *Store) LoadCheckpoint(ctx context.Context, runID, questionID string) (*RunCheckpoint, error) {
	key, err := checkpointKey(runID, questionID)
	if err != nil {
		return nil, err
	}

	var checkpoint *RunCheckpoint
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var c RunCheckpoint
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("failed to unmarshal checkpoint: %w", err)
			}
			checkpoint = &c
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return checkpoint, nil
}

// RecordAnswer saves a completed result for a question in one step.
func (s *Store) RecordAnswer(ctx context.Context, runID string, result *types.QuestionResult) error {
	existing, err := s.LoadCheckpoint(ctx, runID, result.QuestionID)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = &RunCheckpoint{RunID: runID, QuestionID: result.QuestionID}
	}
	existing.Result = result
	existing.LastError = ""
	return s.SaveCheckpoint(ctx, existing)
}

// RecordFailure increments the attempt count and stores the error for a
// question, creating the checkpoint if needed.
func (s *Store) RecordFailure(ctx context.Context, runID, questionID string, cause error) error {
	existing, err := s.LoadCheckpoint(ctx, runID, questionID)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = &RunCheckpoint{RunID: runID, QuestionID: questionID}
	}
	existing.AttemptCount++
	existing.LastError = cause.Error()
	return s.SaveCheckpoint(ctx, existing)
}

// ListCheckpoints returns every checkpoint recorded for a run. Entries that
// fail to unmarshal are skipped rather than failing the whole listing.
func (s *Store) ListCheckpoints(ctx context.Context, runID string) ([]*RunCheckpoint, error) {
	if err := validateKeyPart(runID); err != nil {
		return nil, fmt.Errorf("run %q: %w", runID, err)
	}
	prefix := []byte(checkpointPrefix + runID + keySeparator)

	var checkpoints []*RunCheckpoint
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var c RunCheckpoint
				if err := json.Unmarshal(val, &c); err != nil {
					return nil // skip corrupt entries
				}
				checkpoints = append(checkpoints, &c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return checkpoints, nil
}

// DeleteRun removes all checkpoints for a run and returns how many were
// deleted. Used once a run's artifacts have been written successfully.
func (s *Store) DeleteRun(ctx context.Context, runID string) (int, error) {
	if err := validateKeyPart(runID); err != nil {
		return 0, fmt.Errorf("run %q: %w", runID, err)
	}
	prefix := []byte(checkpointPrefix + runID + keySeparator)

	// Collect keys under a read transaction first; deleting while iterating
	// the same transaction invalidates the iterator.
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan run checkpoints: %w", err)
	}

	removed := 0
	for _, key := range keys {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return removed, fmt.Errorf("failed to delete checkpoint: %w", err)
		}
		removed++
	}
	return removed, nil
}

// RunStatistics summarises checkpoint state for a run.
type RunStatistics struct {
	Total      int
	Answered   int
	Failed     int
	InProgress int
}

// RunStats aggregates the checkpoints of a run. A question counts as Failed
// once it has exhausted maxAttempts without a result.
func (s *Store) RunStats(ctx context.Context, runID string, maxAttempts int) (*RunStatistics, error) {
	checkpoints, err := s.ListCheckpoints(ctx, runID)
	if err != nil {
		return nil, err
	}

	stats := &RunStatistics{Total: len(checkpoints)}
	for _, checkpoint := range checkpoints {
		switch {
		case checkpoint.Done():
			stats.Answered++
		case checkpoint.AttemptCount >= maxAttempts:
			stats.Failed++
		default:
			stats.InProgress++
		}
	}
	return stats, nil
}
