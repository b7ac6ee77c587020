// Package export writes run artifacts in parquet, the bulk format consumed
// by downstream analysis tooling. Each writer takes a flat struct-tagged row
// type and persists the whole batch with a single file write.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/risposta/pkg/predictions"
)

// RetrievalRow is one (question, passage) pair from a retrieval run. Rank is
// the passage's 0-based position in the question's retrieved list.
type RetrievalRow struct {
	QuestionID string  `parquet:"question_id"`
	Question   string  `parquet:"question"`
	Rank       int     `parquet:"rank"`
	PassageID  string  `parquet:"passage_id"`
	Title      string  `parquet:"title"`
	Text       string  `parquet:"text"`
	Score      float64 `parquet:"score"`
}

// WriteRetrievals writes retrieval rows to a parquet file, creating parent
// directories as needed. An empty batch still produces a valid file so
// downstream readers never special-case zero-result runs.
func WriteRetrievals(path string, rows []RetrievalRow) error {
	return writeRows(path, rows)
}

// AnswerRow is one ranked answer alternative for a question. BestAnswer
// repeats the question's promoted answer on every row so each row reads
// standalone.
type AnswerRow struct {
	QuestionID  string  `parquet:"question_id"`
	BestAnswer  string  `parquet:"best_answer"`
	Rank        int     `parquet:"rank"`
	Text        string  `parquet:"text"`
	StartLogit  float64 `parquet:"start_logit"`
	EndLogit    float64 `parquet:"end_logit"`
	Probability float64 `parquet:"probability"`
}

// AnswerRows flattens a result store into one row per n-best entry, in
// question insertion order. A question with an empty shortlist still gets a
// single row so no question disappears from the artifact.
func AnswerRows(store *predictions.Store) []AnswerRow {
	var rows []AnswerRow
	for _, questionID := range store.QuestionIDs() {
		best, _ := store.BestAnswer(questionID)
		nbest, _ := store.NBest(questionID)
		if len(nbest) == 0 {
			rows = append(rows, AnswerRow{QuestionID: questionID, BestAnswer: best})
			continue
		}
		for rank, entry := range nbest {
			rows = append(rows, AnswerRow{
				QuestionID:  questionID,
				BestAnswer:  best,
				Rank:        rank,
				Text:        entry.Text,
				StartLogit:  entry.StartLogit,
				EndLogit:    entry.EndLogit,
				Probability: entry.Probability,
			})
		}
	}
	return rows
}

// WriteAnswers writes answer rows to a parquet file, creating parent
// directories as needed.
func WriteAnswers(path string, rows []AnswerRow) error {
	return writeRows(path, rows)
}

func writeRows[T any](path string, rows []T) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file %s: %w", path, err)
	}
	return nil
}
