package risposta

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/soundprediction/risposta"
	"github.com/soundprediction/risposta/pkg/cache"
	"github.com/soundprediction/risposta/pkg/config"
	"github.com/soundprediction/risposta/pkg/dataset"
	"github.com/soundprediction/risposta/pkg/export"
	"github.com/soundprediction/risposta/pkg/predictions"
	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/utils"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer a question set and write prediction artifacts",
	Long: `Answer every question in a question set against a passage corpus and write
the prediction artifacts (predictions.json, nbest_predictions.json, and
answers.parquet) to the output directory.

With --checkpoints and a cache path, progress is saved per question so an
interrupted run resumes where it stopped instead of re-scoring from the start.`,
	RunE: runBatch,
}

var (
	runCorpus      string
	runQuestions   string
	runRetrievals  string
	runOutput      string
	runRetriever   string
	runTopK        int
	runID          string
	runCheckpoints bool
	runMaxAttempts int
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Dataset flags
	runCmd.Flags().StringVar(&runCorpus, "corpus", "", "Corpus file (.json or .csv)")
	runCmd.Flags().StringVar(&runQuestions, "questions", "", "Question set file (.json or .yaml)")
	runCmd.Flags().StringVar(&runRetrievals, "retrievals", "", "Pre-retrieved passage lists (.json), used by the static retriever")
	runCmd.Flags().StringVar(&runOutput, "output", "", "Output directory for prediction artifacts")

	// Retrieval flags
	runCmd.Flags().StringVar(&runRetriever, "retriever", "", "Retriever provider (bm25, dense, hybrid, static)")
	runCmd.Flags().IntVar(&runTopK, "top-k", 0, "Passages retrieved per question")
	runCmd.Flags().Bool("save-retrievals", false, "Also export the per-question retrieval rankings as parquet")

	// Scorer flags
	runCmd.Flags().String("scorer-endpoint", "", "Span scoring service endpoint")
	runCmd.Flags().String("scorer-api-key", "", "Span scoring service API key")

	// Checkpoint flags
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier for checkpoints (default derives from the questions file)")
	runCmd.Flags().BoolVar(&runCheckpoints, "checkpoints", false, "Checkpoint each answered question for resumable runs")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "Attempts per question before a resumed run skips it")
	runCmd.Flags().String("cache-path", "", "Cache directory for checkpoints and embeddings")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideRunConfigWithFlags(cmd, cfg)

	if err := validateRunConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flushTelemetry()

	// An interrupt cancels the run between questions; with checkpoints on,
	// the next invocation resumes from the last answered question.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	questions, err := dataset.LoadQuestions(cfg.Dataset.Questions)
	if err != nil {
		return err
	}
	log.Info("loaded question set", "path", cfg.Dataset.Questions, "questions", len(questions))

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
	scorerClient, err := buildScorer(cfg)
	if err != nil {
		return err
	}

	engine, err := risposta.NewClient(retrieverClient, nil, scorerClient, engineConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	var results *predictions.Store
	if cfg.Cache.Checkpoints && store != nil {
		results, err = answerWithCheckpoints(ctx, engine, store, checkpointRunID(cfg), questions, cfg.Cache.MaxAttempts, log)
	} else {
		results, err = engine.AnswerBatch(ctx, questions)
	}
	if err != nil {
		return err
	}

	if err := results.WriteFiles(cfg.Output.Dir); err != nil {
		return err
	}
	answersPath := filepath.Join(cfg.Output.Dir, "answers.parquet")
	if err := export.WriteAnswers(answersPath, export.AnswerRows(results)); err != nil {
		return err
	}
	log.Info("artifacts written", "dir", cfg.Output.Dir, "questions", results.Len())

	if cfg.Retriever.SaveResults {
		retrievalsPath := filepath.Join(cfg.Output.Dir, cfg.Output.RetrievalsFile)
		if err := engine.ExportRetrievals(ctx, questions, retrievalsPath); err != nil {
			return err
		}
	}
	return nil
}

// answerWithCheckpoints processes questions in order, consulting the
// checkpoint for each one first. Finished questions replay their stored
// result, questions past the attempt budget are skipped, and everything else
// is answered and checkpointed. A failed question does not stop the run.
func answerWithCheckpoints(ctx context.Context, engine risposta.QuestionAnswerer, store *cache.Store, runID string, questions []types.Question, maxAttempts int, log *slog.Logger) (*predictions.Store, error) {
	results := predictions.NewStore()
	var resumed, failed, skipped int

	for _, question := range questions {
		checkpoint, err := store.LoadCheckpoint(ctx, runID, question.ID)
		if err != nil {
			return nil, err
		}
		if checkpoint != nil && checkpoint.Done() {
			if err := results.Record(checkpoint.Result); err != nil {
				return nil, err
			}
			resumed++
			continue
		}
		if checkpoint != nil && !checkpoint.CanRetry(maxAttempts) {
			log.Warn("skipping question after repeated failures",
				"id", question.ID,
				"attempts", checkpoint.AttemptCount,
				"last_error", checkpoint.LastError)
			skipped++
			continue
		}

		result, err := answerOne(ctx, engine, question)
		if err != nil {
			// Cancellation is not a question failure; stop without
			// burning an attempt.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if recordErr := store.RecordFailure(ctx, runID, question.ID, err); recordErr != nil {
				return nil, recordErr
			}
			log.Error("question failed", "id", question.ID, "error", err)
			failed++
			continue
		}

		if err := store.RecordAnswer(ctx, runID, result); err != nil {
			return nil, err
		}
		if err := results.Record(result); err != nil {
			return nil, err
		}
	}

	log.Info("checkpointed run finished",
		"run_id", runID,
		"answered", results.Len(),
		"resumed", resumed,
		"failed", failed,
		"skipped", skipped)
	return results, nil
}

// answerOne guards a single question with a panic recovery so one bad
// passage cannot take down a resumable run.
func answerOne(ctx context.Context, engine risposta.QuestionAnswerer, question types.Question) (result *types.QuestionResult, err error) {
	defer utils.RecoverAsError(&err)
	return engine.AnswerQuestion(ctx, question)
}

// checkpointRunID returns the configured run id, falling back to the
// questions file name so re-invocations of the same evaluation resume each
// other by default.
func checkpointRunID(cfg *config.Config) string {
	if runID != "" {
		return runID
	}
	base := filepath.Base(cfg.Dataset.Questions)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func overrideRunConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Dataset flags
	if cmd.Flags().Changed("corpus") {
		cfg.Dataset.Corpus = runCorpus
	}
	if cmd.Flags().Changed("questions") {
		cfg.Dataset.Questions = runQuestions
	}
	if cmd.Flags().Changed("retrievals") {
		cfg.Dataset.Retrievals = runRetrievals
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir = runOutput
	}

	// Retrieval flags
	if cmd.Flags().Changed("retriever") {
		cfg.Retriever.Provider = runRetriever
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Retriever.TopK = runTopK
	}
	if cmd.Flags().Changed("save-retrievals") {
		cfg.Retriever.SaveResults, _ = cmd.Flags().GetBool("save-retrievals")
	}

	// Scorer flags
	if cmd.Flags().Changed("scorer-endpoint") {
		cfg.Scorer.Endpoint, _ = cmd.Flags().GetString("scorer-endpoint")
	}
	if cmd.Flags().Changed("scorer-api-key") {
		cfg.Scorer.APIKey, _ = cmd.Flags().GetString("scorer-api-key")
	}

	// Checkpoint flags
	if cmd.Flags().Changed("checkpoints") {
		cfg.Cache.Checkpoints = runCheckpoints
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.Cache.MaxAttempts = runMaxAttempts
	}
	if cmd.Flags().Changed("cache-path") {
		cfg.Cache.Path, _ = cmd.Flags().GetString("cache-path")
	}
}

func validateRunConfig(cfg *config.Config) error {
	if cfg.Dataset.Questions == "" {
		return fmt.Errorf("a questions file is required")
	}
	if cfg.Retriever.Provider == "static" {
		if cfg.Dataset.Retrievals == "" {
			return fmt.Errorf("the static retriever requires a retrievals file")
		}
	} else if cfg.Dataset.Corpus == "" {
		return fmt.Errorf("a corpus file is required")
	}
	if cfg.Scorer.Provider == "http" && cfg.Scorer.Endpoint == "" {
		return fmt.Errorf("a scorer endpoint is required")
	}
	if cfg.Cache.Checkpoints && !cfg.Cache.Enabled() {
		return fmt.Errorf("checkpoints require a cache path")
	}
	return nil
}
