// Package predictions accumulates per-question answers and n-best lists in
// question processing order and persists them as JSON artifacts.
//
// Two artifacts are produced, keyed identically by question id: a predictions
// file mapping each question id to its best answer string, and an n-best file
// mapping each question id to its ranked candidate list. Key order follows
// insertion order, and non-ASCII text is written unescaped.
package predictions

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundprediction/risposta/pkg/types"
)

const (
	// PredictionsFile is the artifact holding question id to best answer.
	PredictionsFile = "predictions.json"
	// NBestFile is the artifact holding question id to ranked candidates.
	NBestFile = "nbest_predictions.json"
)

// Store collects results for a run. Keys are appended once per question and
// never overwritten.
type Store struct {
	best  *orderedmap.OrderedMap[string, string]
	nbest *orderedmap.OrderedMap[string, []types.NBestEntry]
}

// NewStore creates an empty result store.
func NewStore() *Store {
	return &Store{
		best:  orderedmap.New[string, string](),
		nbest: orderedmap.New[string, []types.NBestEntry](),
	}
}

// Record appends one question's result. Recording the same question id twice
// is an error, question ids are assumed unique across a run.
func (s *Store) Record(result *types.QuestionResult) error {
	if result == nil {
		return fmt.Errorf("record: nil result")
	}
	if result.QuestionID == "" {
		return types.ErrEmptyQuestionID
	}
	if _, ok := s.best.Get(result.QuestionID); ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateQuestion, result.QuestionID)
	}
	s.best.Set(result.QuestionID, result.BestAnswer)
	s.nbest.Set(result.QuestionID, result.NBest)
	return nil
}

// Len returns the number of recorded questions.
func (s *Store) Len() int {
	return s.best.Len()
}

// QuestionIDs returns all recorded question ids in insertion order.
func (s *Store) QuestionIDs() []string {
	ids := make([]string, 0, s.best.Len())
	for pair := s.best.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// BestAnswer returns the recorded best answer for a question id.
func (s *Store) BestAnswer(questionID string) (string, bool) {
	return s.best.Get(questionID)
}

// NBest returns the recorded n-best list for a question id.
func (s *Store) NBest(questionID string) ([]types.NBestEntry, bool) {
	return s.nbest.Get(questionID)
}

// WritePredictions writes the best-answer artifact to w.
func (s *Store) WritePredictions(w io.Writer) error {
	return writeJSON(w, s.best)
}

// WriteNBest writes the n-best artifact to w.
func (s *Store) WriteNBest(w io.Writer) error {
	return writeJSON(w, s.nbest)
}

// WriteFiles persists both artifacts under dir, creating it if needed.
func (s *Store) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := s.writeFile(filepath.Join(dir, PredictionsFile), s.WritePredictions); err != nil {
		return err
	}
	return s.writeFile(filepath.Join(dir, NBestFile), s.WriteNBest)
}

func (s *Store) writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
