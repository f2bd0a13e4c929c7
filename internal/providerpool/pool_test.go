package providerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnectsl/travelcore-router/internal/types"
)

type fakeProvider struct {
	id          string
	calls       int
	failures    []*types.ProviderError
	response    string
	healthErr   error
	healthCalls int
}

func (f *fakeProvider) ProviderName() string { return f.id }

func (f *fakeProvider) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	defer func() { f.calls++ }()
	if f.calls < len(f.failures) {
		if fail := f.failures[f.calls]; fail != nil {
			return nil, fail
		}
	}
	return &types.LlmResponse{Text: f.response, ProviderID: f.id}, nil
}

func (f *fakeProvider) EstimateCost(req *types.LlmRequest) (*types.CostEstimate, error) {
	return &types.CostEstimate{}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error {
	f.healthCalls++
	return f.healthErr
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestComplete_SucceedsOnFirstAttempt(t *testing.T) {
	provider := &fakeProvider{id: "p1", response: "ok"}
	pool := New(Entry{ProviderID: "p1", Provider: provider, Timeout: time.Second}, testLogger())

	resp, err := pool.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, provider.calls)
	assert.True(t, pool.IsHealthy())
}

func TestComplete_RetriesTimeoutThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		id: "p1",
		failures: []*types.ProviderError{
			{ProviderID: "p1", Class: types.ProviderTimeout, Err: errors.New("timed out")},
		},
		response: "ok",
	}
	pool := New(Entry{ProviderID: "p1", Provider: provider, Timeout: time.Second, MaxRetries: 2, BaseDelay: time.Millisecond}, testLogger())

	resp, err := pool.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, provider.calls)
}

func TestComplete_NeverRetriesAuthError(t *testing.T) {
	provider := &fakeProvider{
		id: "p1",
		failures: []*types.ProviderError{
			{ProviderID: "p1", Class: types.ProviderAuthError, Err: errors.New("bad key")},
		},
	}
	pool := New(Entry{ProviderID: "p1", Provider: provider, Timeout: time.Second, MaxRetries: 3, BaseDelay: time.Millisecond}, testLogger())

	_, err := pool.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.Error(t, err)
	assert.Equal(t, 1, provider.calls)
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ProviderAuthError, perr.Class)
	assert.False(t, pool.IsHealthy())
}

func TestComplete_RetriesOtherClassAtMostOnce(t *testing.T) {
	provider := &fakeProvider{
		id: "p1",
		failures: []*types.ProviderError{
			{ProviderID: "p1", Class: types.ProviderOther, Err: errors.New("boom")},
			{ProviderID: "p1", Class: types.ProviderOther, Err: errors.New("boom again")},
		},
	}
	pool := New(Entry{ProviderID: "p1", Provider: provider, Timeout: time.Second, MaxRetries: 5, BaseDelay: time.Millisecond}, testLogger())

	_, err := pool.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.Error(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestComplete_StopsWhenContextCancelledDuringBackoff(t *testing.T) {
	provider := &fakeProvider{
		id: "p1",
		failures: []*types.ProviderError{
			{ProviderID: "p1", Class: types.ProviderTimeout, Err: errors.New("timed out")},
			{ProviderID: "p1", Class: types.ProviderTimeout, Err: errors.New("timed out")},
		},
	}
	pool := New(Entry{ProviderID: "p1", Provider: provider, Timeout: time.Second, MaxRetries: 5, BaseDelay: 50 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := pool.Complete(ctx, &types.LlmRequest{User: "hi"})
	require.Error(t, err)
}

func TestHealthCheck_RecordsStatus(t *testing.T) {
	provider := &fakeProvider{id: "p1"}
	pool := New(Entry{ProviderID: "p1", Provider: provider, Timeout: time.Second}, testLogger())

	pool.HealthCheck(context.Background())
	assert.Equal(t, 1, provider.healthCalls)
	assert.Equal(t, "healthy", pool.Status().Status)

	provider.healthErr = errors.New("unreachable")
	pool.HealthCheck(context.Background())
	assert.Equal(t, "unhealthy", pool.Status().Status)
	assert.Equal(t, "unreachable", pool.Status().ErrorMessage)
}

func TestNew_AppliesDefaults(t *testing.T) {
	pool := New(Entry{ProviderID: "p1", Provider: &fakeProvider{id: "p1"}}, testLogger())
	assert.Equal(t, "p1", pool.ProviderID())
	assert.True(t, pool.IsHealthy())
}
