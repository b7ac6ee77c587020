package risposta

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/soundprediction/risposta/pkg/cache"
	"github.com/soundprediction/risposta/pkg/config"
	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and manage batch run checkpoints",
	Long: `Inspect and manage the per-question checkpoints written by checkpointed
batch runs. Checkpoints live in the cache; runs resume from them and this
command shows or clears what is stored.`,
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the checkpoints of a run",
	RunE:  runCheckpointsList,
}

var checkpointsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoints of a run",
	RunE:  runCheckpointsClear,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsClearCmd)

	for _, cmd := range []*cobra.Command{checkpointsListCmd, checkpointsClearCmd} {
		cmd.Flags().String("run-id", "", "Run identifier (default derives from the configured questions file)")
		cmd.Flags().String("cache-path", "", "Cache directory holding the checkpoints")
	}
	checkpointsListCmd.Flags().Int("max-attempts", 0, "Attempt limit used to classify unfinished questions as failed")
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	cfg, store, runID, err := openCheckpointStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if cmd.Flags().Changed("max-attempts") {
		cfg.Cache.MaxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	}

	ctx := cmd.Context()
	stats, err := store.RunStats(ctx, runID, cfg.Cache.MaxAttempts)
	if err != nil {
		return err
	}
	checkpoints, err := store.ListCheckpoints(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d checkpoints (%d answered, %d failed, %d in progress)\n\n",
		runID, stats.Total, stats.Answered, stats.Failed, stats.InProgress)
	if len(checkpoints) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUESTION\tSTATUS\tATTEMPTS\tUPDATED\tDETAIL")
	for _, checkpoint := range checkpoints {
		status := "pending"
		detail := checkpoint.LastError
		switch {
		case checkpoint.Done():
			status = "answered"
			detail = fmt.Sprintf("%q", checkpoint.Result.BestAnswer)
		case checkpoint.AttemptCount >= cfg.Cache.MaxAttempts:
			status = "failed"
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			checkpoint.QuestionID,
			status,
			checkpoint.AttemptCount,
			checkpoint.LastUpdatedAt.Format(time.RFC3339),
			detail)
	}
	return w.Flush()
}

func runCheckpointsClear(cmd *cobra.Command, args []string) error {
	_, store, runID, err := openCheckpointStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.DeleteRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	// Reclaim the value-log space the deleted checkpoints held.
	if err := store.RunGC(); err != nil {
		return err
	}
	fmt.Printf("Removed %d checkpoints for run %s\n", removed, runID)
	return nil
}

// openCheckpointStore loads config, applies the shared flags, and opens the
// cache. The caller closes the returned store.
func openCheckpointStore(cmd *cobra.Command) (*config.Config, *cache.Store, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("cache-path") {
		cfg.Cache.Path, _ = cmd.Flags().GetString("cache-path")
	}

	id, _ := cmd.Flags().GetString("run-id")
	if id == "" && cfg.Dataset.Questions != "" {
		id = checkpointRunID(cfg)
	}
	if id == "" {
		return nil, nil, "", fmt.Errorf("a run id is required (--run-id or a configured questions file)")
	}

	store, err := openCacheStore(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	if store == nil {
		return nil, nil, "", fmt.Errorf("a cache path is required (--cache-path or cache.path)")
	}
	return cfg, store, id, nil
}
