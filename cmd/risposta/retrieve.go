package risposta

import (
	"fmt"
	"path/filepath"

	"github.com/soundprediction/risposta/pkg/config"
	"github.com/soundprediction/risposta/pkg/dataset"
	"github.com/soundprediction/risposta/pkg/export"
	"github.com/spf13/cobra"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run retrieval only and export the ranked passages",
	Long: `Retrieve passages for every question in a question set and export the
ranked lists as parquet, without running span extraction.

Useful for inspecting retriever quality on its own, or for producing the
pre-retrieved passage lists consumed by the static retriever.`,
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)

	retrieveCmd.Flags().String("corpus", "", "Corpus file (.json or .csv)")
	retrieveCmd.Flags().String("questions", "", "Question set file (.json or .yaml)")
	retrieveCmd.Flags().String("output-file", "", "Destination parquet file (default <output dir>/retrievals.parquet)")
	retrieveCmd.Flags().String("retriever", "", "Retriever provider (bm25, dense, hybrid)")
	retrieveCmd.Flags().Int("top-k", 0, "Passages retrieved per question")
	retrieveCmd.Flags().String("cache-path", "", "Cache directory for embeddings")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideRetrieveConfigWithFlags(cmd, cfg)

	if cfg.Dataset.Corpus == "" {
		return fmt.Errorf("a corpus file is required")
	}
	if cfg.Dataset.Questions == "" {
		return fmt.Errorf("a questions file is required")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flushTelemetry()
	ctx := cmd.Context()

	questions, err := dataset.LoadQuestions(cfg.Dataset.Questions)
	if err != nil {
		return err
	}

	store, err := openCacheStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	retrieverClient, err := buildRetriever(cfg, store, questions)
	if err != nil {
		return err
	}
	defer retrieverClient.Close()

	topK := cfg.Retriever.TopK
	rows := make([]export.RetrievalRow, 0, len(questions)*topK)
	for _, question := range questions {
		passages, err := retrieverClient.Retrieve(ctx, question.Text, topK)
		if err != nil {
			return fmt.Errorf("question %s: %w", question.ID, err)
		}
		for rank, passage := range passages {
			rows = append(rows, export.RetrievalRow{
				QuestionID: question.ID,
				Question:   question.Text,
				Rank:       rank,
				PassageID:  passage.ID,
				Title:      passage.Title,
				Text:       passage.Text,
				Score:      passage.Score,
			})
		}
	}

	path, _ := cmd.Flags().GetString("output-file")
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, cfg.Output.RetrievalsFile)
	}
	if err := export.WriteRetrievals(path, rows); err != nil {
		return err
	}
	log.Info("exported retrieval results", "questions", len(questions), "rows", len(rows), "path", path)
	return nil
}

func overrideRetrieveConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("corpus") {
		cfg.Dataset.Corpus, _ = cmd.Flags().GetString("corpus")
	}
	if cmd.Flags().Changed("questions") {
		cfg.Dataset.Questions, _ = cmd.Flags().GetString("questions")
	}
	if cmd.Flags().Changed("retriever") {
		cfg.Retriever.Provider, _ = cmd.Flags().GetString("retriever")
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Retriever.TopK, _ = cmd.Flags().GetInt("top-k")
	}
	if cmd.Flags().Changed("cache-path") {
		cfg.Cache.Path, _ = cmd.Flags().GetString("cache-path")
	}
}
