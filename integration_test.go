//go:build integration
// +build integration

package risposta_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/risposta"
	"github.com/soundprediction/risposta/pkg/dataset"
	"github.com/soundprediction/risposta/pkg/predictions"
	"github.com/soundprediction/risposta/pkg/retriever"
	"github.com/soundprediction/risposta/pkg/scorer"
	"github.com/soundprediction/risposta/pkg/types"
)

// End-to-end tests over real dataset files on disk.
// Run with: go test -tags=integration

const (
	integrationQuestions = `- id: q1
  text: what shelters the fishing fleet
- id: q2
  text: where do the boats rest
`

	// Every passage is shaped so its second word spans characters 5 to 12;
	// the pinned scorer below promotes exactly that word.
	integrationRetrievals = `{
  "q1": [
    {"id": "d1", "title": "Port", "text": "wind harbour faces the open sea", "score": 11.5}
  ],
  "q2": [
    {"id": "d2", "title": "Beach", "text": "calm beached boats rest on sand", "score": 9.25},
    {"id": "d3", "title": "Cats", "text": "warm napcats curl on the sill", "score": 4.5}
  ]
}`

	integrationCorpus = `{
  "0": {"title": "Port", "text": "wind harbour faces the open sea"},
  "1": {"title": "Beach", "text": "calm beached boats rest on sand"},
  "2": {"title": "Cats", "text": "warm napcats curl on the sill"}
}`
)

func writeDatasetFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func pinnedScorer() *scorer.MockClient {
	return scorer.NewMockClient(scorer.MockConfig{
		ScoreFunc: func(w types.Window) types.WindowScore {
			return spanScores(w, 5, 12, 8, 0)
		},
	})
}

func TestStaticPipelineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	questionsPath := writeDatasetFile(t, dir, "questions.yaml", integrationQuestions)
	retrievalsPath := writeDatasetFile(t, dir, "retrievals.json", integrationRetrievals)

	questions, err := dataset.LoadQuestions(questionsPath)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	retrievals, err := dataset.LoadRetrievals(retrievalsPath)
	require.NoError(t, err)
	mapping, err := dataset.StaticMapping(questions, retrievals)
	require.NoError(t, err)

	ret, err := retriever.NewClient(retriever.Config{
		Provider: retriever.ProviderStatic,
		Mapping:  mapping,
	})
	require.NoError(t, err)

	client, err := risposta.NewClient(ret, nil, pinnedScorer(), testConfig(), nil)
	require.NoError(t, err)
	defer client.Close()

	store, err := client.AnswerBatch(context.Background(), questions)
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	outDir := filepath.Join(dir, "out")
	require.NoError(t, store.WriteFiles(outDir))

	// Best answers come from each question's own passage list. The q2 tie
	// keeps the higher-ranked passage.
	raw, err := os.ReadFile(filepath.Join(outDir, predictions.PredictionsFile))
	require.NoError(t, err)

	var best map[string]string
	require.NoError(t, json.Unmarshal(raw, &best))
	assert.Equal(t, map[string]string{
		"q1": "harbour",
		"q2": "beached",
	}, best)

	// Question order survives serialization.
	text := string(raw)
	assert.Less(t, strings.Index(text, `"q1"`), strings.Index(text, `"q2"`))

	rawNBest, err := os.ReadFile(filepath.Join(outDir, predictions.NBestFile))
	require.NoError(t, err)

	var nbest map[string][]types.NBestEntry
	require.NoError(t, json.Unmarshal(rawNBest, &nbest))

	require.Len(t, nbest["q1"], 1)
	assert.Equal(t, "harbour", nbest["q1"][0].Text)
	assert.InDelta(t, 1.0, nbest["q1"][0].Probability, 1e-9)

	require.Len(t, nbest["q2"], 2)
	assert.Equal(t, "beached", nbest["q2"][0].Text)
	assert.Equal(t, "napcats", nbest["q2"][1].Text)
	assert.InDelta(t, 1.0, nbest["q2"][0].Probability+nbest["q2"][1].Probability, 1e-9)
}

func TestBM25PipelineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	corpusPath := writeDatasetFile(t, dir, "corpus.json", integrationCorpus)

	corpus, err := dataset.LoadCorpus(corpusPath)
	require.NoError(t, err)
	require.Len(t, corpus, 3)

	ret, err := retriever.NewClient(retriever.Config{
		Provider: retriever.ProviderBM25,
		Passages: corpus,
	})
	require.NoError(t, err)

	client, err := risposta.NewClient(ret, nil, pinnedScorer(), testConfig(), nil)
	require.NoError(t, err)
	defer client.Close()

	result, err := client.AnswerQuestion(context.Background(), types.Question{
		ID:   "q-boats",
		Text: "where do the boats rest",
	})
	require.NoError(t, err)

	// Lexical overlap puts the beach passage first, and the tie between the
	// remaining passages cannot displace it.
	assert.Equal(t, "beached", result.BestAnswer)
	require.NotEmpty(t, result.NBest)
	assert.Equal(t, "beached", result.NBest[0].Text)
}
