package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/utils"
)

// corpusDocument is one entry of an id-to-document corpus map. Fields beyond
// title and text are ignored.
type corpusDocument struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// csvPassage is one row of a CSV corpus.
type csvPassage struct {
	ID    string `csv:"id"`
	Title string `csv:"title"`
	Text  string `csv:"text"`
}

// LoadCorpus reads a passage corpus from path, dispatching on the file
// extension: .json for an id-to-document map, .csv for flat rows.
func LoadCorpus(path string) ([]types.Passage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadCorpusJSON(path)
	case ".csv":
		return loadCorpusCSV(path)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", filepath.Ext(path))
	}
}

func loadCorpusJSON(path string) ([]types.Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var docs map[string]corpusDocument
	if err := decodeJSON(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode corpus file %s: %w", path, err)
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sortDocumentIDs(ids)

	passages := make([]types.Passage, 0, len(docs))
	for i, id := range ids {
		doc := docs[id]
		if doc.Text == "" {
			return nil, fmt.Errorf("document %s: %w", id, types.ErrEmptyPassage)
		}
		passages = append(passages, types.Passage{
			Index: i,
			ID:    id,
			Title: doc.Title,
			Text:  doc.Text,
		})
	}
	return passages, nil
}

// sortDocumentIDs orders numerically when both ids parse as integers, so "2"
// sorts before "10". Corpora with non-numeric ids fall back to lexicographic
// order. Either way passage order is stable across loads.
func sortDocumentIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
}

func loadCorpusCSV(path string) ([]types.Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	rows, err := utils.UnmarshalCSV[csvPassage](string(data), ',')
	if err != nil {
		return nil, fmt.Errorf("failed to decode corpus file %s: %w", path, err)
	}

	passages := make([]types.Passage, 0, len(rows))
	for i, row := range rows {
		if row.Text == "" {
			return nil, fmt.Errorf("row %d: %w", i, types.ErrEmptyPassage)
		}
		id := row.ID
		if id == "" {
			id = utils.GenerateUUID()
		}
		passages = append(passages, types.Passage{
			Index: i,
			ID:    id,
			Title: row.Title,
			Text:  row.Text,
		})
	}
	return passages, nil
}

// decodeJSON strictly unmarshals data, falling back to one jsonrepair pass
// for inputs with trailing commas, comments, or unquoted keys. The strict
// error is returned when the repaired form fails too, since it points at the
// real defect.
func decodeJSON(data []byte, v interface{}) error {
	strictErr := json.Unmarshal(data, v)
	if strictErr == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return strictErr
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return strictErr
	}
	return nil
}
