package ragengine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnectsl/travelcore-router/internal/gateway"
	"github.com/skyconnectsl/travelcore-router/internal/providerpool"
	"github.com/skyconnectsl/travelcore-router/internal/types"
	"github.com/skyconnectsl/travelcore-router/internal/vectorstore"
)

type fakeStore struct {
	results []vectorstore.Result
}

func (f *fakeStore) Search(ctx context.Context, text string, k int) ([]vectorstore.Result, error) {
	if k > 0 && k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) ProviderName() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req *types.LlmRequest) (*types.LlmResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.LlmResponse{Text: f.response, ProviderID: "fake"}, nil
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

func TestHandle_ContainedIntentsRefuseRegardlessOfScore(t *testing.T) {
	store := &fakeStore{results: []vectorstore.Result{{ID: "c1", Text: "irrelevant", Score: 0.99}}}
	engine := New(store, nil, defaultSimilarityThreshold)

	for _, intent := range []types.Intent{types.IntentAnalytics, types.IntentRevenue, types.IntentModeration} {
		result, err := engine.Handle(context.Background(), &types.RagRequest{Query: "how much revenue", Intent: intent})
		require.NoError(t, err)
		assert.True(t, result.Refused)
		assert.Equal(t, "rag_cannot_serve_live_data", result.Reason)
	}
}

func TestHandle_RefusesBelowSimilarityThreshold(t *testing.T) {
	store := &fakeStore{results: []vectorstore.Result{{ID: "c1", Text: "weak match", Score: 0.3}}}
	engine := New(store, nil, defaultSimilarityThreshold)

	result, err := engine.Handle(context.Background(), &types.RagRequest{Query: "something obscure", Intent: types.IntentPolicy})

	require.NoError(t, err)
	assert.True(t, result.Refused)
	assert.Equal(t, "insufficient_context", result.Reason)
}

func TestHandle_DegradesToTemplatedWhenGatewayNil(t *testing.T) {
	store := &fakeStore{results: []vectorstore.Result{
		{ID: "policy-refund-1", Text: "Refunds are issued in full for cancellations made early.", Score: 0.9},
	}}
	engine := New(store, nil, defaultSimilarityThreshold)

	result, err := engine.Handle(context.Background(), &types.RagRequest{Query: "refund policy", Intent: types.IntentPolicy})

	require.NoError(t, err)
	assert.False(t, result.Refused)
	assert.False(t, result.LlmUsed)
	assert.Contains(t, result.ResponseText, "Refunds are issued in full")
	assert.Contains(t, result.ResponseText, "[policy-refund-1]")
}

func TestHandle_DegradesToTemplatedWhenSynthesisFails(t *testing.T) {
	store := &fakeStore{results: []vectorstore.Result{
		{ID: "policy-refund-1", Text: "Refunds are issued in full for cancellations made early.", Score: 0.9},
	}}
	logger := testLogger()
	provider := &fakeProvider{err: assertError{}}
	pool := providerpool.New(providerpool.Entry{ProviderID: "fake", Provider: provider, Timeout: time.Second, MaxRetries: 0}, logger)
	gw := gateway.New([]*providerpool.Pool{pool}, nil, logger)

	engine := New(store, gw, defaultSimilarityThreshold)
	result, err := engine.Handle(context.Background(), &types.RagRequest{Query: "refund policy", Intent: types.IntentPolicy})

	require.NoError(t, err)
	assert.False(t, result.LlmUsed)
	assert.Contains(t, result.ResponseText, "[policy-refund-1]")
}

func TestHandle_SynthesizesWhenGatewayHealthy(t *testing.T) {
	store := &fakeStore{results: []vectorstore.Result{
		{ID: "policy-refund-1", Text: "Refunds are issued in full for cancellations made early.", Score: 0.9},
	}}
	logger := testLogger()
	provider := &fakeProvider{response: "You get a full refund if you cancel early. [policy-refund-1]"}
	pool := providerpool.New(providerpool.Entry{ProviderID: "fake", Provider: provider, Timeout: time.Second}, logger)
	gw := gateway.New([]*providerpool.Pool{pool}, nil, logger)

	engine := New(store, gw, defaultSimilarityThreshold)
	result, err := engine.Handle(context.Background(), &types.RagRequest{Query: "refund policy", Intent: types.IntentPolicy})

	require.NoError(t, err)
	assert.True(t, result.LlmUsed)
	assert.Equal(t, "fake", result.LlmProvider)
	assert.Equal(t, provider.response, result.ResponseText)
}

func TestCitations_BuildsFromChunks(t *testing.T) {
	result := &types.RagResult{Chunks: []types.Chunk{{SourceID: "c1", Score: 0.8}, {SourceID: "c2", Score: 0.6}}}
	citations := Citations(result)
	require.Len(t, citations, 2)
	assert.Equal(t, "c1", citations[0].SourceID)
}

type assertError struct{}

func (assertError) Error() string { return "synthesis failed" }
