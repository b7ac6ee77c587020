/*
Package scorer provides batched scoring clients for extractive span models.

A scorer takes token windows and returns per-token start and end scores for
each window, positions aligned with the input token sequences. The model
behind the scorer is opaque: this package only defines the boundary and the
transports to reach it.

Usage:

	// Remote model served over HTTP
	client, err := scorer.NewClient(scorer.Config{
		Provider: scorer.ProviderHTTP,
		HTTP: &scorer.HTTPConfig{
			Endpoint: "http://localhost:9090",
		},
	})

	scores, err := client.Score(ctx, windows)

	// Deterministic mock for tests
	mock := scorer.NewMockClient(scorer.MockConfig{})

Scorer transports hold accelerator-resident transient buffers on the model
side; ReleaseTransient tells the model to drop them once a question's scoring
work completes, so peak memory stays bounded regardless of corpus size.
*/
package scorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/risposta/pkg/types"
)

// ErrUnavailable is returned when the scorer cannot be reached or its
// circuit breaker is open. Callers treat this as fatal for the run.
var ErrUnavailable = errors.New("scorer unavailable")

// Client scores batches of token windows.
type Client interface {
	// Score returns one WindowScore per input window, in input order.
	Score(ctx context.Context, windows []types.Window) ([]types.WindowScore, error)

	// ReleaseTransient asks the model to drop any transient buffers held
	// from previous Score calls.
	ReleaseTransient(ctx context.Context) error

	// Close releases client-side resources.
	Close() error
}

// Provider represents the type of scoring backend.
type Provider string

const (
	// ProviderHTTP reaches a remote scoring service over JSON/HTTP.
	ProviderHTTP Provider = "http"

	// ProviderMock uses a deterministic in-process scorer for testing.
	ProviderMock Provider = "mock"
)

// Config holds configuration for creating scorer clients.
type Config struct {
	Provider Provider    `json:"provider"`
	HTTP     *HTTPConfig `json:"http,omitempty"`
	Mock     *MockConfig `json:"mock,omitempty"`
}

// NewClient creates a scorer client based on the provider type.
func NewClient(config Config) (Client, error) {
	switch config.Provider {
	case ProviderHTTP:
		if config.HTTP == nil {
			return nil, fmt.Errorf("http config required for http provider")
		}
		return NewHTTPClient(*config.HTTP)

	case ProviderMock:
		mockConfig := MockConfig{}
		if config.Mock != nil {
			mockConfig = *config.Mock
		}
		return NewMockClient(mockConfig), nil

	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", config.Provider)
	}
}
