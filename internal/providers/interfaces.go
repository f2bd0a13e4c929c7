package providers

import (
	"context"

	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// LLMProvider is the narrow completion contract every backing model wraps.
// Engines never see SDK-specific types; they see LlmRequest/LlmResponse.
type LLMProvider interface {
	ProviderName() string
	Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error)
	EstimateCost(req *types.LlmRequest) (*types.CostEstimate, error)
	HealthCheck(ctx context.Context) error
}
