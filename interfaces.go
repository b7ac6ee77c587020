package risposta

import (
	"context"

	"github.com/soundprediction/risposta/pkg/predictions"
	"github.com/soundprediction/risposta/pkg/retriever"
	"github.com/soundprediction/risposta/pkg/scorer"
	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/window"
)

// This file defines focused interfaces that follow the Interface Segregation Principle.
// The main Risposta interface is composed from these smaller interfaces, and the
// engine's collaborators are consumed through capability interfaces so that tests
// can substitute deterministic doubles. Consumers should depend on the smallest
// interface that meets their needs.

// Windower converts one (question, passage) pair into fixed-length scoring
// windows with character-offset mappings back to the passage text.
type Windower interface {
	// Windows returns the ordered windows for the passage at the given
	// retrieval rank. A passage longer than one window yields several
	// overlapping windows; the question segment is re-prepended to each.
	Windows(questionText, passageText string, passageIndex int) ([]types.Window, error)
}

// Scorer scores batches of windows with an opaque neural model.
type Scorer interface {
	// Score returns one start/end score pair per window, in input order.
	Score(ctx context.Context, windows []types.Window) ([]types.WindowScore, error)

	// ReleaseTransient frees scorer-held transient memory. Called once per
	// question after its scoring work completes, so peak memory stays
	// bounded regardless of how many windows a question produced.
	ReleaseTransient(ctx context.Context) error

	// Close releases the scorer's long-lived resources.
	Close() error
}

// Retriever returns ranked candidate passages for a query.
type Retriever interface {
	// Retrieve returns up to limit passages in descending relevance order.
	Retrieve(ctx context.Context, query string, limit int) ([]types.Passage, error)

	// Close releases any index or connection held by the retriever.
	Close() error
}

// QuestionAnswerer answers individual questions.
// Use this interface when you process questions one at a time, for example
// behind a serving endpoint.
type QuestionAnswerer interface {
	// Answer runs the extraction pipeline for one question over passages the
	// caller already retrieved. Passage order is retrieval rank order.
	Answer(ctx context.Context, question types.Question, passages []types.Passage) (*types.QuestionResult, error)

	// AnswerQuestion retrieves passages for the question and then answers it.
	AnswerQuestion(ctx context.Context, question types.Question) (*types.QuestionResult, error)
}

// BatchAnswerer processes whole question sets into persistable results.
// Use this interface for offline evaluation runs.
type BatchAnswerer interface {
	// AnswerBatch processes questions strictly in order, one at a time, and
	// accumulates every result into a store ready for persistence.
	AnswerBatch(ctx context.Context, questions []types.Question) (*predictions.Store, error)
}

// PassageSearcher exposes raw retrieval without extraction.
// Use this interface to inspect or export what the retriever returns.
type PassageSearcher interface {
	// Retrieve returns the ranked candidate passages for a query.
	Retrieve(ctx context.Context, query string) ([]types.Passage, error)
}

// Ensure the Risposta interface composes all focused interfaces.
// This compile-time check keeps the segmented interfaces in sync.
var _ interface {
	QuestionAnswerer
	BatchAnswerer
	PassageSearcher
	Close() error
} = (Risposta)(nil)

// Ensure the concrete collaborator packages satisfy the capability interfaces.
var (
	_ Windower  = (*window.SlidingWindower)(nil)
	_ Scorer    = (scorer.Client)(nil)
	_ Retriever = (retriever.Client)(nil)
)
