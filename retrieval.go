package risposta

import (
	"context"
	"fmt"

	"github.com/soundprediction/risposta/pkg/export"
	"github.com/soundprediction/risposta/pkg/types"
)

// Retrieve returns the ranked candidate passages for a query, up to the
// configured top-k. Rank order is descending relevance as decided by the
// retriever; the extraction pipeline never reorders passages.
func (c *Client) Retrieve(ctx context.Context, query string) ([]types.Passage, error) {
	if c.retriever == nil {
		return nil, ErrNoRetriever
	}
	passages, err := c.retriever.Retrieve(ctx, query, c.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	return passages, nil
}

// ExportRetrievals retrieves passages for every question and writes one row
// per (question, passage) pair to a parquet file, preserving rank order.
// Useful for inspecting retriever quality separately from extraction.
func (c *Client) ExportRetrievals(ctx context.Context, questions []types.Question, path string) error {
	rows := make([]export.RetrievalRow, 0, len(questions)*c.config.TopK)
	for _, question := range questions {
		if err := question.Validate(); err != nil {
			return err
		}
		passages, err := c.Retrieve(ctx, question.Text)
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

	if err := export.WriteRetrievals(path, rows); err != nil {
		return fmt.Errorf("failed to export retrievals: %w", err)
	}
	c.logger.Info("exported retrieval results",
		"questions", len(questions), "rows", len(rows), "path", path)
	return nil
}
