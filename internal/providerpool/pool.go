// Package providerpool wraps a single LLM provider with timeout, retry, and
// health tracking, generalizing the per-provider health-check handling the
// teacher used to inline inside each provider implementation.
package providerpool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/providers"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// Entry configures one pooled provider.
type Entry struct {
	ProviderID string
	Provider   providers.LLMProvider
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Pool wraps one LLMProvider with timeout-bounded, class-aware retry.
type Pool struct {
	entry  Entry
	logger *logrus.Logger

	mu          sync.RWMutex
	healthy     bool
	lastChecked time.Time
	lastError   string
}

func New(entry Entry, logger *logrus.Logger) *Pool {
	if entry.Timeout <= 0 {
		entry.Timeout = 8 * time.Second
	}
	if entry.MaxRetries <= 0 {
		entry.MaxRetries = 2
	}
	if entry.BaseDelay <= 0 {
		entry.BaseDelay = 250 * time.Millisecond
	}
	return &Pool{entry: entry, logger: logger, healthy: true}
}

func (p *Pool) ProviderID() string {
	return p.entry.ProviderID
}

// Complete calls the wrapped provider, retrying ProviderTimeout and
// ProviderRateLimited with jittered exponential backoff. ProviderAuthError
// is never retried. Anything else is classified ProviderOther and retried
// at most once.
func (p *Pool) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.entry.Timeout)
		resp, err := p.entry.Provider.Complete(callCtx, req)
		cancel()

		if err == nil {
			p.recordHealth(true, "")
			return resp, nil
		}

		p.recordHealth(false, err.Error())

		var perr *types.ProviderError
		if !errors.As(err, &perr) {
			perr = &types.ProviderError{ProviderID: p.entry.ProviderID, Class: types.ProviderOther, Err: err}
		}

		if perr.Class == types.ProviderAuthError {
			return nil, perr
		}

		maxAttempts := p.entry.MaxRetries
		if perr.Class == types.ProviderOther {
			maxAttempts = 1
		}
		if attempt >= maxAttempts {
			return nil, perr
		}

		delay := p.backoffDelay(attempt)
		p.logger.WithFields(logrus.Fields{
			"provider": p.entry.ProviderID,
			"attempt":  attempt + 1,
			"class":    perr.Class,
			"delay_ms": delay.Milliseconds(),
		}).Warn("provider call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes base_delay * 2^attempt with +/-20% jitter.
func (p *Pool) backoffDelay(attempt int) time.Duration {
	backoff := p.entry.BaseDelay * time.Duration(1<<uint(attempt))
	jitter := time.Duration(float64(backoff) * 0.2 * (rand.Float64()*2 - 1))
	d := backoff + jitter
	if d < 0 {
		d = p.entry.BaseDelay
	}
	return d
}

func (p *Pool) recordHealth(ok bool, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = ok
	p.lastChecked = time.Now()
	p.lastError = errMsg
}

// HealthCheck polls the underlying provider out-of-band and records the
// result, mirroring the teacher's background health-check goroutine which
// deliberately uses a context detached from any single request's deadline.
func (p *Pool) HealthCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.entry.Timeout)
	defer cancel()

	err := p.entry.Provider.HealthCheck(checkCtx)
	if err != nil {
		p.recordHealth(false, err.Error())
		return
	}
	p.recordHealth(true, "")
}

func (p *Pool) Status() types.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := "healthy"
	if !p.healthy {
		status = "unhealthy"
	}
	return types.HealthStatus{
		Status:       status,
		LastChecked:  p.lastChecked.Unix(),
		ErrorMessage: p.lastError,
	}
}

func (p *Pool) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

// RunHealthLoop polls the provider on an interval until ctx is cancelled.
// Uses context.Background for the per-check deadline deliberately, the same
// out-of-band pattern the teacher used for its background health goroutine.
func (p *Pool) RunHealthLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.HealthCheck(context.Background())
		}
	}
}
