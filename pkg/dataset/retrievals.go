package dataset

import (
	"fmt"
	"os"

	"github.com/soundprediction/risposta/pkg/types"
)

// staticPassage is one pre-retrieved candidate in a static retrieval file.
type staticPassage struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// LoadRetrievals reads pre-retrieved passage lists keyed by question id, as
// produced by an offline retrieval run. List order is kept; it encodes the
// retrieval ranking.
func LoadRetrievals(path string) (map[string][]types.Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read retrievals file: %w", err)
	}

	var raw map[string][]staticPassage
	if err := decodeJSON(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode retrievals file %s: %w", path, err)
	}

	out := make(map[string][]types.Passage, len(raw))
	for questionID, passages := range raw {
		if questionID == "" {
			return nil, types.ErrEmptyQuestionID
		}
		list := make([]types.Passage, len(passages))
		for i, passage := range passages {
			if passage.Text == "" {
				return nil, fmt.Errorf("question %s, passage %d: %w", questionID, i, types.ErrEmptyPassage)
			}
			list[i] = types.Passage{
				Index: i,
				ID:    passage.ID,
				Title: passage.Title,
				Text:  passage.Text,
				Score: passage.Score,
			}
		}
		out[questionID] = list
	}
	return out, nil
}

// StaticMapping re-keys pre-retrieved lists from question id to question
// text, which is what the static retriever matches on. Every retrieval entry
// must reference a known question, and no two questions may share a text;
// both indicate a broken pairing of question set and retrieval file.
func StaticMapping(questions []types.Question, retrievals map[string][]types.Passage) (map[string][]types.Passage, error) {
	textByID := make(map[string]string, len(questions))
	idByText := make(map[string]string, len(questions))
	for _, question := range questions {
		if prev, ok := idByText[question.Text]; ok {
			return nil, fmt.Errorf("questions %s and %s share the same text; static retrieval cannot tell them apart", prev, question.ID)
		}
		textByID[question.ID] = question.Text
		idByText[question.Text] = question.ID
	}

	mapping := make(map[string][]types.Passage, len(retrievals))
	for questionID, passages := range retrievals {
		text, ok := textByID[questionID]
		if !ok {
			return nil, fmt.Errorf("retrievals reference unknown question id %q", questionID)
		}
		mapping[text] = passages
	}
	return mapping, nil
}
