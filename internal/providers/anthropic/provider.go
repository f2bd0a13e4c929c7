package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/providers"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// AnthropicProvider implements providers.LLMProvider by wrapping Claude.
type AnthropicProvider struct {
	client *anthropic.Client
	config *AnthropicConfig
	logger *logrus.Logger
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Model   string            `yaml:"model"`
	Models  []types.ModelInfo `yaml:"models"`
	Timeout time.Duration     `yaml:"timeout"`
}

func NewAnthropicProvider(config *AnthropicConfig, logger *logrus.Logger) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		config: config,
		logger: logger,
	}
}

func (p *AnthropicProvider) ProviderName() string {
	return "anthropic"
}

// Complete performs a single-turn completion. The caller supplies the system
// prompt and user text; the provider never sees conversation history.
func (p *AnthropicProvider) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	start := time.Now()

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model()),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System, Type: "text"}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		p.logger.WithError(err).WithField("provider", "anthropic").Error("completion call failed")
		return nil, p.classifyError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &types.LlmResponse{
		Text:       text.String(),
		ProviderID: "anthropic",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (p *AnthropicProvider) model() string {
	if p.config.Model != "" {
		return p.config.Model
	}
	return "claude-3-5-sonnet-20241022"
}

func (p *AnthropicProvider) EstimateCost(req *types.LlmRequest) (*types.CostEstimate, error) {
	var modelInfo *types.ModelInfo
	for i := range p.config.Models {
		if p.config.Models[i].Name == p.model() {
			modelInfo = &p.config.Models[i]
			break
		}
	}
	if modelInfo == nil {
		modelInfo = &types.ModelInfo{InputCostPer1K: 0.003, OutputCostPer1K: 0.015}
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

func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	testReq := anthropic.MessageNewParams{
		Model: anthropic.Model("claude-3-haiku-20240307"),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
		MaxTokens: 1,
	}

	_, err := p.client.Messages.New(ctx, testReq)
	if err != nil {
		p.logger.WithError(err).Error("anthropic health check failed")
		return fmt.Errorf("anthropic health check failed: %w", err)
	}

	return nil
}

// classifyError maps an Anthropic SDK failure to the retry policy's error
// class. Auth failures must never be retried; rate limits and timeouts are.
func (p *AnthropicProvider) classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.ProviderError{ProviderID: "anthropic", Class: types.ProviderTimeout, Err: err}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return &types.ProviderError{ProviderID: "anthropic", Class: types.ProviderAuthError, Err: err}
		case 429:
			return &types.ProviderError{ProviderID: "anthropic", Class: types.ProviderRateLimited, Err: err}
		case 408, 504:
			return &types.ProviderError{ProviderID: "anthropic", Class: types.ProviderTimeout, Err: err}
		}
	}

	return &types.ProviderError{ProviderID: "anthropic", Class: types.ProviderOther, Err: err}
}

// estimateTokens is a rough Claude-tuned heuristic: ~3.5 chars per token.
func (p *AnthropicProvider) estimateTokens(s string) int {
	return len(s) * 10 / 35
}

var _ providers.LLMProvider = (*AnthropicProvider)(nil)
