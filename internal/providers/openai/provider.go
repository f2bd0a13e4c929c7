package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/providers"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// OpenAIProvider implements providers.LLMProvider by wrapping go-openai.
type OpenAIProvider struct {
	client *openai.Client
	config *OpenAIConfig
	logger *logrus.Logger
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	OrgID   string            `yaml:"org_id"`
	Model   string            `yaml:"model"`
	Models  []types.ModelInfo `yaml:"models"`
	Timeout time.Duration     `yaml:"timeout"`
}

func NewOpenAIProvider(config *OpenAIConfig, logger *logrus.Logger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	client := openai.NewClientWithConfig(clientConfig)

	return &OpenAIProvider{
		client: client,
		config: config,
		logger: logger,
	}
}

func (p *OpenAIProvider) ProviderName() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	start := time.Now()

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	openaiReq := openai.ChatCompletionRequest{
		Model:    p.model(),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		openaiReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		openaiReq.Temperature = float32(req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		p.logger.WithError(err).WithField("provider", "openai").Error("completion call failed")
		return nil, p.classifyError(err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &types.LlmResponse{
		Text:       text,
		ProviderID: "openai",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) model() string {
	if p.config.Model != "" {
		return p.config.Model
	}
	return openai.GPT4oMini
}

func (p *OpenAIProvider) EstimateCost(req *types.LlmRequest) (*types.CostEstimate, error) {
	var modelInfo *types.ModelInfo
	for i := range p.config.Models {
		if p.config.Models[i].Name == p.model() {
			modelInfo = &p.config.Models[i]
			break
		}
	}
	if modelInfo == nil {
		modelInfo = &types.ModelInfo{InputCostPer1K: 0.005, OutputCostPer1K: 0.015}
	}

	inputTokens := p.estimateTokens(req.System + req.User)
	outputTokens := req.MaxTokens
	if outputTokens == 0 {
		outputTokens = 256
	}

	totalCost := float64(inputTokens)*modelInfo.InputCostPer1K/1000 + float64(outputTokens)*modelInfo.OutputCostPer1K/1000

	return &types.CostEstimate{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalCost:    totalCost,
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		p.logger.WithError(err).Error("openai health check failed")
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.ProviderError{ProviderID: "openai", Class: types.ProviderTimeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return &types.ProviderError{ProviderID: "openai", Class: types.ProviderAuthError, Err: err}
		case 429:
			return &types.ProviderError{ProviderID: "openai", Class: types.ProviderRateLimited, Err: err}
		case 408, 504:
			return &types.ProviderError{ProviderID: "openai", Class: types.ProviderTimeout, Err: err}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &types.ProviderError{ProviderID: "openai", Class: types.ProviderTimeout, Err: err}
	}

	return &types.ProviderError{ProviderID: "openai", Class: types.ProviderOther, Err: err}
}

// estimateTokens is a rough heuristic: ~4 chars per token.
func (p *OpenAIProvider) estimateTokens(s string) int {
	return len(s) / 4
}

var _ providers.LLMProvider = (*OpenAIProvider)(nil)
