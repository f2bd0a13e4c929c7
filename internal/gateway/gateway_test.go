package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnectsl/travelcore-router/internal/observability"
	"github.com/skyconnectsl/travelcore-router/internal/providerpool"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

type fakeProvider struct {
	id       string
	calls    int
	fail     *types.ProviderError
	response string
}

func (f *fakeProvider) ProviderName() string { return f.id }

func (f *fakeProvider) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return &types.LlmResponse{Text: f.response, ProviderID: f.id}, nil
}

func (f *fakeProvider) EstimateCost(req *types.LlmRequest) (*types.CostEstimate, error) {
	return &types.CostEstimate{}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestGateway_PrimarySucceeds(t *testing.T) {
	logger := testLogger()
	primary := &fakeProvider{id: "primary", response: "ok"}
	pool := providerpool.New(providerpool.Entry{ProviderID: "primary", Provider: primary, Timeout: time.Second}, logger)

	gw := New([]*providerpool.Pool{pool}, nil, logger)
	resp, err := gw.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, primary.calls)
}

func TestGateway_FallsBackOnTimeout(t *testing.T) {
	logger := testLogger()
	primary := &fakeProvider{id: "primary", fail: &types.ProviderError{ProviderID: "primary", Class: types.ProviderTimeout}}
	secondary := &fakeProvider{id: "secondary", response: "fallback-ok"}

	primaryPool := providerpool.New(providerpool.Entry{ProviderID: "primary", Provider: primary, Timeout: time.Second, MaxRetries: 0}, logger)
	secondaryPool := providerpool.New(providerpool.Entry{ProviderID: "secondary", Provider: secondary, Timeout: time.Second}, logger)

	gw := New([]*providerpool.Pool{primaryPool, secondaryPool}, nil, logger)
	resp, err := gw.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "fallback-ok", resp.Text)
	assert.Equal(t, 1, gw.FallbackCount("primary", "secondary", types.ProviderTimeout))
}

func TestGateway_FallbackReportedToRecorder(t *testing.T) {
	logger := testLogger()
	recorder := observability.NewRecorder(logger, prometheus.NewRegistry(), 16)
	defer recorder.Stop()

	primary := &fakeProvider{id: "primary", fail: &types.ProviderError{ProviderID: "primary", Class: types.ProviderTimeout}}
	secondary := &fakeProvider{id: "secondary", response: "fallback-ok"}

	primaryPool := providerpool.New(providerpool.Entry{ProviderID: "primary", Provider: primary, Timeout: time.Second, MaxRetries: 0}, logger)
	secondaryPool := providerpool.New(providerpool.Entry{ProviderID: "secondary", Provider: secondary, Timeout: time.Second}, logger)

	gw := New([]*providerpool.Pool{primaryPool, secondaryPool}, recorder, logger)
	_, err := gw.Complete(context.Background(), &types.LlmRequest{User: "hi", CorrelationID: "corr-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, gw.FallbackCount("primary", "secondary", types.ProviderTimeout))
	assert.Equal(t, 1.0, recorder.FallbackCount("primary", "secondary", string(types.ProviderTimeout)))
}

func TestGateway_AuthErrorSkippedNotCountedAsFallback(t *testing.T) {
	logger := testLogger()
	primary := &fakeProvider{id: "primary", fail: &types.ProviderError{ProviderID: "primary", Class: types.ProviderAuthError}}
	secondary := &fakeProvider{id: "secondary", response: "ok"}

	primaryPool := providerpool.New(providerpool.Entry{ProviderID: "primary", Provider: primary, Timeout: time.Second}, logger)
	secondaryPool := providerpool.New(providerpool.Entry{ProviderID: "secondary", Provider: secondary, Timeout: time.Second}, logger)

	gw := New([]*providerpool.Pool{primaryPool, secondaryPool}, nil, logger)
	resp, err := gw.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 0, gw.FallbackCount("primary", "secondary", types.ProviderAuthError))
}

func TestGateway_AllProvidersFail(t *testing.T) {
	logger := testLogger()
	primary := &fakeProvider{id: "primary", fail: &types.ProviderError{ProviderID: "primary", Class: types.ProviderTimeout}}
	primaryPool := providerpool.New(providerpool.Entry{ProviderID: "primary", Provider: primary, Timeout: time.Second, MaxRetries: 0}, logger)

	gw := New([]*providerpool.Pool{primaryPool}, nil, logger)
	_, err := gw.Complete(context.Background(), &types.LlmRequest{User: "hi"})

	assert.ErrorIs(t, err, ErrLlmUnavailable)
}
