package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/utils"
)

// SQuAD-style file structure, reduced to the fields the pipeline needs.
// Contexts and gold answers are ignored; passages come from retrieval.
type squadFile struct {
	Data []squadArticle `json:"data"`
}

type squadArticle struct {
	Title      string           `json:"title"`
	Paragraphs []squadParagraph `json:"paragraphs"`
}

type squadParagraph struct {
	QAs []squadQA `json:"qas"`
}

type squadQA struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// manifestQuestion is one entry of a flat YAML question manifest.
type manifestQuestion struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// LoadQuestions reads a question set from path, dispatching on the file
// extension: .json for SQuAD-style files, .yaml or .yml for flat manifests.
// Question order follows file order.
func LoadQuestions(path string) ([]types.Question, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadQuestionsSQuAD(path)
	case ".yaml", ".yml":
		return loadQuestionsYAML(path)
	default:
		return nil, fmt.Errorf("unsupported question set format %q", filepath.Ext(path))
	}
}

func loadQuestionsSQuAD(path string) ([]types.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question set: %w", err)
	}

	var file squadFile
	if err := decodeJSON(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode question set %s: %w", path, err)
	}

	var questions []types.Question
	for _, article := range file.Data {
		for _, paragraph := range article.Paragraphs {
			for _, qa := range paragraph.QAs {
				questions = append(questions, types.Question{ID: qa.ID, Text: qa.Question})
			}
		}
	}
	return validateQuestions(questions)
}

func loadQuestionsYAML(path string) ([]types.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question set: %w", err)
	}

	rows, err := utils.UnmarshalYAML[manifestQuestion](string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode question set %s: %w", path, err)
	}

	questions := make([]types.Question, 0, len(rows))
	for _, row := range rows {
		id := row.ID
		if id == "" {
			// Manifests may omit ids; results still need a stable key.
			id = utils.GenerateUUID()
		}
		questions = append(questions, types.Question{ID: id, Text: row.Text})
	}
	return validateQuestions(questions)
}

// validateQuestions rejects empty fields and duplicate ids. A duplicate id
// would collapse two questions into one artifact key, so it is fatal.
func validateQuestions(questions []types.Question) ([]types.Question, error) {
	seen := make(map[string]struct{}, len(questions))
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if _, ok := seen[questions[i].ID]; ok {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateQuestion, questions[i].ID)
		}
		seen[questions[i].ID] = struct{}{}
	}
	return questions, nil
}
