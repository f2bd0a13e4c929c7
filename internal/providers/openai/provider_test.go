package openai

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skyconnectsl/travelcore-router/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_ProviderName(t *testing.T) {
	provider := createTestProvider(t)
	assert.Equal(t, "openai", provider.ProviderName())
}

func TestOpenAIProvider_EstimateCost(t *testing.T) {
	provider := createTestProvider(t)

	tests := []struct {
		name    string
		request *types.LlmRequest
	}{
		{name: "simple request", request: &types.LlmRequest{User: "Hello", MaxTokens: 100}},
		{name: "request with system prompt", request: &types.LlmRequest{System: "You are a helpful assistant.", User: "Summarize the refund policy.", MaxTokens: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimate, err := provider.EstimateCost(tt.request)
			require.NoError(t, err)
			assert.Greater(t, estimate.TotalCost, 0.0)
			assert.Greater(t, estimate.InputTokens, 0)
			assert.Equal(t, tt.request.MaxTokens, estimate.OutputTokens)
		})
	}
}

func TestOpenAIProvider_TokenEstimation(t *testing.T) {
	provider := createTestProvider(t)

	short := provider.estimateTokens("Hello")
	long := provider.estimateTokens("This is a considerably longer message that should result in more estimated tokens")

	assert.Greater(t, long, short)
}

func createTestProvider(t *testing.T) *OpenAIProvider {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	config := &OpenAIConfig{
		APIKey: "test-api-key",
		Model:  "gpt-4o-mini",
		Models: []types.ModelInfo{
			{Name: "gpt-4o-mini", InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006, MaxContextWindow: 128000, MaxOutputTokens: 16384},
		},
		Timeout: 30 * time.Second,
	}

	return NewOpenAIProvider(config, logger)
}

func BenchmarkOpenAIProvider_EstimateCost(b *testing.B) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	provider := NewOpenAIProvider(&OpenAIConfig{APIKey: "bench", Model: "gpt-4o-mini"}, logger)
	req := &types.LlmRequest{User: "Hello, this is a benchmark test", MaxTokens: 100}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = provider.EstimateCost(req)
	}
}
