// Package gateway generalizes the teacher's routing.Router.routeWithFallback
// (ordered fallback across providers, FailedProviders bookkeeping) down to
// the spec's simpler ordered-failover contract: try providers in configured
// order, never reorder, never retry the same provider twice at this layer
// (retry lives one level down in providerpool).
package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/observability"
	"github.com/skyconnectsl/travelcore-router/internal/providerpool"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// ErrLlmUnavailable is raised when every configured provider has failed.
var ErrLlmUnavailable = errors.New("gateway: no llm provider available")

// FallbackKey identifies one (from, to, error_class) transition for counting.
type FallbackKey struct {
	From  string
	To    string
	Class types.ProviderErrorClass
}

// Gateway walks an ordered, stable provider list and tracks fallback counts.
type Gateway struct {
	pools    []*providerpool.Pool
	recorder *observability.Recorder
	logger   *logrus.Logger

	mu        sync.Mutex
	fallbacks map[FallbackKey]int
}

// New builds a Gateway over pools, in configured fallback order. recorder may
// be nil, in which case fallback transitions are still counted internally
// (FallbackCount) but never reported to observability.
func New(pools []*providerpool.Pool, recorder *observability.Recorder, logger *logrus.Logger) *Gateway {
	return &Gateway{
		pools:     pools,
		recorder:  recorder,
		logger:    logger,
		fallbacks: make(map[FallbackKey]int),
	}
}

// Complete tries providers in configured order. AuthError is logged and
// skipped without counting as a fallback; any other retryable failure
// advances to the next provider and records a fallback event.
func (g *Gateway) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	var previous string

	for i, pool := range g.pools {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := pool.Complete(ctx, req)
		if err == nil {
			if previous != "" && previous != pool.ProviderID() {
				g.logger.WithFields(logrus.Fields{
					"from": previous,
					"to":   pool.ProviderID(),
				}).Info("llm gateway succeeded after fallback")
			}
			return resp, nil
		}

		var perr *types.ProviderError
		if !errors.As(err, &perr) {
			perr = &types.ProviderError{ProviderID: pool.ProviderID(), Class: types.ProviderOther, Err: err}
		}

		isLast := i == len(g.pools)-1

		if perr.Class == types.ProviderAuthError {
			g.logger.WithField("provider", pool.ProviderID()).Warn("llm provider auth error, skipping without fallback count")
			previous = pool.ProviderID()
			if isLast {
				break
			}
			continue
		}

		if !isLast {
			next := g.pools[i+1].ProviderID()
			g.recordFallback(ctx, req.CorrelationID, pool.ProviderID(), next, perr.Class)
			g.logger.WithFields(logrus.Fields{
				"from":  pool.ProviderID(),
				"to":    next,
				"class": perr.Class,
			}).Warn("llm provider failed, falling back")
		}

		previous = pool.ProviderID()
	}

	return nil, ErrLlmUnavailable
}

func (g *Gateway) recordFallback(ctx context.Context, correlationID, from, to string, class types.ProviderErrorClass) {
	key := FallbackKey{From: from, To: to, Class: class}
	g.mu.Lock()
	g.fallbacks[key]++
	g.mu.Unlock()

	if g.recorder != nil {
		g.recorder.RecordFallback(ctx, correlationID, from, to, string(class))
	}
}

// FallbackCount returns the current count for one (from, to, class) triple.
func (g *Gateway) FallbackCount(from, to string, class types.ProviderErrorClass) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fallbacks[FallbackKey{From: from, To: to, Class: class}]
}

// AnyHealthy reports whether at least one pooled provider is currently
// considered healthy, used by the Router to decide whether optional LLM
// formatting is worth attempting at all.
func (g *Gateway) AnyHealthy() bool {
	for _, pool := range g.pools {
		if pool.IsHealthy() {
			return true
		}
	}
	return false
}
