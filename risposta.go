package risposta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/risposta/pkg/predictions"
	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/window"
)

// Risposta is the main interface for extractive question answering over
// retrieved passages. It locates the best answer substring for each question
// together with a probability-ranked shortlist of alternatives, handling
// passages too long for a single scoring window via sliding-window overflow.
type Risposta interface {
	// Answer runs the extraction pipeline for one question over passages the
	// caller already retrieved. Passage order is retrieval rank order.
	Answer(ctx context.Context, question types.Question, passages []types.Passage) (*types.QuestionResult, error)

	// AnswerQuestion retrieves passages for the question and then answers it.
	// Requires a configured retriever.
	AnswerQuestion(ctx context.Context, question types.Question) (*types.QuestionResult, error)

	// AnswerBatch processes questions strictly in order, one at a time, and
	// accumulates every result into a store ready for persistence.
	AnswerBatch(ctx context.Context, questions []types.Question) (*predictions.Store, error)

	// Retrieve returns the ranked candidate passages for a query without
	// running extraction. Requires a configured retriever.
	Retrieve(ctx context.Context, query string) ([]types.Passage, error)

	// Close releases the scorer and retriever resources.
	Close() error
}

// Client is the main implementation of the Risposta interface.
type Client struct {
	retriever Retriever
	windower  Windower
	scorer    Scorer
	config    *Config
	logger    *slog.Logger
}

// Config holds configuration for the Risposta client.
type Config struct {
	// MaxLength is the token length of one scoring window, question included.
	MaxLength int
	// Stride is the token overlap between adjacent windows of one passage.
	Stride int
	// BatchSize is the number of windows sent to the scorer per call.
	BatchSize int
	// TopK is the number of passages requested from the retriever per question.
	TopK int
	// NBestSize caps the ranked candidate list kept per question.
	NBestSize int
	// MaxAnswerLength caps promoted answers, in characters.
	MaxAnswerLength int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxLength:       window.DefaultMaxLength,
		Stride:          window.DefaultStride,
		BatchSize:       8,
		TopK:            10,
		NBestSize:       20,
		MaxAnswerLength: 30,
	}
}

// NewClient creates a new Risposta client.
//
// The scorer is required. The retriever may be nil when callers supply
// passages themselves via Answer. A nil windower gets a default sliding
// windower built from the configured window geometry, and a nil config gets
// DefaultConfig values.
func NewClient(retrieverClient Retriever, windowerClient Windower, scorerClient Scorer, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	} else {
		applyDefaults(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if scorerClient == nil {
		return nil, fmt.Errorf("%w: scorer client is required", ErrInvalidConfig)
	}
	if windowerClient == nil {
		windowerClient = window.New(nil, window.Config{
			MaxLength: config.MaxLength,
			Stride:    config.Stride,
			Lowercase: true,
		})
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		retriever: retrieverClient,
		windower:  windowerClient,
		scorer:    scorerClient,
		config:    config,
		logger:    logger,
	}, nil
}

func applyDefaults(config *Config) {
	defaults := DefaultConfig()
	if config.MaxLength == 0 {
		config.MaxLength = defaults.MaxLength
	}
	if config.Stride == 0 {
		config.Stride = defaults.Stride
	}
	if config.BatchSize == 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.TopK == 0 {
		config.TopK = defaults.TopK
	}
	if config.NBestSize == 0 {
		config.NBestSize = defaults.NBestSize
	}
	if config.MaxAnswerLength == 0 {
		config.MaxAnswerLength = defaults.MaxAnswerLength
	}
}

// Validate reports whether the configuration can produce answers at all.
func (c *Config) Validate() error {
	if c.MaxLength < 1 {
		return fmt.Errorf("%w: max length must be positive, got %d", ErrInvalidConfig, c.MaxLength)
	}
	if c.Stride < 0 || c.Stride >= c.MaxLength {
		return fmt.Errorf("%w: stride %d must be in [0, %d)", ErrInvalidConfig, c.Stride, c.MaxLength)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.NBestSize < 1 {
		return fmt.Errorf("%w: n-best size must be positive, got %d", ErrInvalidConfig, c.NBestSize)
	}
	if c.MaxAnswerLength < 1 {
		return fmt.Errorf("%w: max answer length must be positive, got %d", ErrInvalidConfig, c.MaxAnswerLength)
	}
	return nil
}

// GetRetriever returns the retriever client.
func (c *Client) GetRetriever() Retriever {
	return c.retriever
}

// GetWindower returns the windowing client.
func (c *Client) GetWindower() Windower {
	return c.windower
}

// GetScorer returns the scorer client.
func (c *Client) GetScorer() Scorer {
	return c.scorer
}

// Close closes the scorer and, when configured, the retriever.
func (c *Client) Close() error {
	var firstErr error
	if err := c.scorer.Close(); err != nil {
		firstErr = err
	}
	if c.retriever != nil {
		if err := c.retriever.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	// ErrInvalidConfig is returned when the engine cannot produce any valid
	// answer with the given configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoRetriever is returned when a retrieval operation is requested but
	// no retriever was configured.
	ErrNoRetriever = errors.New("no retriever configured")
)
