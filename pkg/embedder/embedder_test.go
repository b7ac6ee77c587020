package embedder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/risposta/pkg/embedder"
)

var (
	_ embedder.Client = (*embedder.OpenAIEmbedder)(nil)
	_ embedder.Client = (*embedder.EmbedEverythingClient)(nil)
	_ embedder.Client = (*embedder.MockEmbedder)(nil)
)

func TestNewOpenAIEmbedder(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		config embedder.Config
	}{
		{
			name:   "valid API key",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-ada-002"},
		},
		{
			name:   "empty API key",
			apiKey: "",
			config: embedder.Config{Model: "text-embedding-ada-002"},
		},
		{
			name:   "custom model",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-3-small"},
		},
		{
			name:   "custom base URL",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-ada-002", BaseURL: "https://api.example.com"},
		},
		{
			name:   "empty model uses default",
			apiKey: "test-api-key",
			config: embedder.Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder(tt.apiKey, tt.config)
			assert.NotNil(t, client)

			// Verify client has proper defaults set
			assert.Greater(t, client.Dimensions(), 0)
		})
	}
}

func TestEmbedderConfig(t *testing.T) {
	tests := []struct {
		name         string
		config       embedder.Config
		expectedDims int
	}{
		{
			name: "default config",
			config: embedder.Config{
				Model: "text-embedding-ada-002",
			},
			expectedDims: 1536,
		},
		{
			name: "config with custom settings",
			config: embedder.Config{
				Model:   "text-embedding-3-small",
				BaseURL: "https://custom.openai.com",
			},
			expectedDims: 1536,
		},
		{
			name: "large model",
			config: embedder.Config{
				Model: "text-embedding-3-large",
			},
			expectedDims: 3072,
		},
		{
			name: "custom dimensions",
			config: embedder.Config{
				Model:      "custom-model",
				Dimensions: 512,
			},
			expectedDims: 512,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder("test-key", tt.config)
			assert.NotNil(t, client)
			assert.Equal(t, tt.expectedDims, client.Dimensions())
		})
	}
}

func TestNewClientFactory(t *testing.T) {
	client, err := embedder.NewClient(embedder.ProviderOpenAI, "test-key", embedder.Config{})
	require.NoError(t, err)
	assert.IsType(t, &embedder.OpenAIEmbedder{}, client)

	client, err = embedder.NewClient(embedder.ProviderMock, "", embedder.Config{Dimensions: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, client.Dimensions())

	_, err = embedder.NewClient("word2vec", "", embedder.Config{})
	assert.Error(t, err)
}

func TestEmbedderModelNames(t *testing.T) {
	openAI := embedder.NewOpenAIEmbedder("test-key", embedder.Config{})
	assert.Equal(t, "text-embedding-3-small", openAI.Model())

	custom := embedder.NewOpenAIEmbedder("test-key", embedder.Config{Model: "text-embedding-3-large"})
	assert.Equal(t, "text-embedding-3-large", custom.Model())

	mock := embedder.NewMockEmbedder(16)
	assert.Equal(t, "mock-16", mock.Model())
}

func TestMockEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	mock := embedder.NewMockEmbedder(32)

	first, err := mock.EmbedSingle(ctx, "the cat sat")
	require.NoError(t, err)
	second, err := mock.EmbedSingle(ctx, "the cat sat")
	require.NoError(t, err)
	other, err := mock.EmbedSingle(ctx, "an unrelated text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 32)

	// Unit norm within float tolerance.
	var norm float64
	for _, x := range first {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	batch, err := mock.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestEmbedderBatchProcessing(t *testing.T) {
	t.Skip("Skip integration test - requires API key")

	ctx := context.Background()
	client := embedder.NewOpenAIEmbedder("test-key", embedder.Config{
		Model: "text-embedding-ada-002",
	})
	require.NotNil(t, client)

	texts := []string{
		"Hello world",
		"This is a test",
		"Another text to embed",
	}

	embeddings, err := client.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Len(t, embeddings, len(texts))

	for _, embedding := range embeddings {
		assert.Greater(t, len(embedding), 0)
		assert.Equal(t, client.Dimensions(), len(embedding))
	}
}

func TestEmbedderEmptyInput(t *testing.T) {
	ctx := context.Background()
	client := embedder.NewOpenAIEmbedder("test-key", embedder.Config{})

	// No texts means no API call and no error.
	embeddings, err := client.Embed(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}
