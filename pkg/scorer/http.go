package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/risposta/pkg/alert"
	"github.com/soundprediction/risposta/pkg/types"
)

// HTTPConfig holds configuration for the HTTP scorer client.
type HTTPConfig struct {
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`

	// CircuitBreaker guards the scoring endpoint; zero values enable the
	// defaults below.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty"`

	// Alerter is notified when the circuit breaker trips. Nil disables
	// notifications.
	Alerter alert.Alerter `json:"-"`
}

// CircuitBreakerConfig tunes the breaker wrapped around scoring calls.
type CircuitBreakerConfig struct {
	MaxRequests      uint32  `json:"max_requests"`
	Interval         int     `json:"interval"` // in seconds
	Timeout          int     `json:"timeout"`  // in seconds
	ReadyToTripRatio float64 `json:"ready_to_trip_ratio"`
}

// HTTPClient reaches a remote scoring service. The service contract:
//
//	POST {endpoint}/v1/score    {"sequences": [{"token_ids": [...], "attention_mask": [...]}]}
//	  -> {"scores": [{"start": [...], "end": [...]}]}
//	POST {endpoint}/v1/release  -> 200/204
//	GET  {endpoint}/health      -> 200
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

type scoreSequence struct {
	TokenIDs      []int `json:"token_ids"`
	AttentionMask []int `json:"attention_mask"`
}

type scoreRequest struct {
	Sequences []scoreSequence `json:"sequences"`
}

type scoreResponse struct {
	Scores []types.WindowScore `json:"scores"`
}

// NewHTTPClient creates an HTTP scorer client.
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint URL is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cbConfig := config.CircuitBreaker
	if cbConfig.MaxRequests == 0 {
		cbConfig.MaxRequests = 1
	}
	if cbConfig.Timeout <= 0 {
		cbConfig.Timeout = 30
	}
	if cbConfig.ReadyToTripRatio <= 0 {
		cbConfig.ReadyToTripRatio = 0.6
	}

	baseURL := strings.TrimRight(config.Endpoint, "/")
	alerter := config.Alerter

	st := gobreaker.Settings{
		Name:        "scorer",
		MaxRequests: cbConfig.MaxRequests,
		Interval:    time.Duration(cbConfig.Interval) * time.Second,
		Timeout:     time.Duration(cbConfig.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cbConfig.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit breaker %q changed from %s to %s. The scoring service at %s is failing repeatedly.", name, from, to, baseURL)
				_ = alerter.Alert(fmt.Sprintf("URGENT: scoring circuit breaker tripped - %s", name), msg)
			}
		},
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb: gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Score submits one batch of windows and returns scores in input order.
func (c *HTTPClient) Score(ctx context.Context, windows []types.Window) ([]types.WindowScore, error) {
	if len(windows) == 0 {
		return []types.WindowScore{}, nil
	}

	request := scoreRequest{Sequences: make([]scoreSequence, len(windows))}
	for i, w := range windows {
		request.Sequences[i] = scoreSequence{
			TokenIDs:      w.TokenIDs,
			AttentionMask: w.AttentionMask,
		}
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		var response scoreResponse
		if err := c.makeRequest(ctx, "/v1/score", request, &response); err != nil {
			return nil, err
		}
		return response.Scores, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}

	scores := result.([]types.WindowScore)
	if len(scores) != len(windows) {
		return nil, fmt.Errorf("scorer returned %d score pairs for %d windows", len(scores), len(windows))
	}
	for i := range scores {
		if err := scores[i].Validate(&windows[i]); err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
	}
	return scores, nil
}

// ReleaseTransient asks the service to drop accelerator-resident buffers.
func (c *HTTPClient) ReleaseTransient(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/release", nil)
	if err != nil {
		return fmt.Errorf("failed to create release request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("release request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("release failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Health checks that the scoring service is reachable.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases client-side resources.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) makeRequest(ctx context.Context, path string, request interface{}, result interface{}) error {
	reqBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, strings.NewReader(string(reqBody)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiError struct {
			Detail string `json:"detail"`
		}
		json.Unmarshal(body, &apiError)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiError.Detail)
	}

	return json.Unmarshal(body, result)
}
