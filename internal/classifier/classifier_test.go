package classifier

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/skyconnectsl/travelcore-router/internal/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestClassify_KeywordFastPath(t *testing.T) {
	c := New(context.Background(), nil, 0.6, testLogger())

	result := c.Classify(context.Background(), "What is the refund policy for cancellations?")

	assert.Equal(t, types.IntentPolicy, result.Intent)
	assert.Equal(t, types.MethodKeyword, result.Method)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)
}

func TestClassify_PrecedenceTieBreak(t *testing.T) {
	c := New(context.Background(), nil, 0.6, testLogger())

	// Matches two terms each for moderation and revenue; moderation wins by precedence.
	result := c.Classify(context.Background(), "review application for earnings payout approve partner")

	assert.Equal(t, types.IntentModeration, result.Intent)
}

func TestClassify_DefaultBranchHasNoEncoder(t *testing.T) {
	c := New(context.Background(), nil, 0.6, testLogger())

	result := c.Classify(context.Background(), "asdkjasdkj qweqwe")

	assert.Equal(t, types.IntentRecommendation, result.Intent)
	assert.Equal(t, types.MethodDefault, result.Method)
}

type fakeEncoder struct {
	vectors map[string][]float64
}

func (f *fakeEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func TestClassify_ConfidenceThresholdGatesKeywordAcceptance(t *testing.T) {
	// "find" contributes a single matched term for IntentRecommendation,
	// giving a raw score of 1/maxExpectedTerms == 0.5.
	query := "find something nice"

	lenient := New(context.Background(), nil, 0.4, testLogger())
	result := lenient.Classify(context.Background(), query)
	assert.Equal(t, types.MethodKeyword, result.Method)

	strict := New(context.Background(), nil, 0.6, testLogger())
	result = strict.Classify(context.Background(), query)
	assert.Equal(t, types.MethodDefault, result.Method, "a 0.5 score must not clear a 0.6 threshold")
}

func TestClassify_ConfidenceExactlyAtThresholdIsLowTrust(t *testing.T) {
	// Two matched terms score exactly 1.0, capped to 0.95 before the
	// threshold comparison, so pick a query whose raw score lands exactly
	// on the configured threshold to exercise the strict-greater boundary.
	c := New(context.Background(), nil, 0.5, testLogger())

	result := c.Classify(context.Background(), "find something nice")

	assert.Equal(t, types.MethodDefault, result.Method, "confidence exactly at threshold must be treated as low-trust")
}

func TestClassify_EmbeddingFallback(t *testing.T) {
	enc := &fakeEncoder{vectors: map[string][]float64{
		"show me beach resorts":  {1, 0, 0},
		"find a tour in Kandy":   {1, 0, 0},
		"recommend a guesthouse": {1, 0, 0},
		"unmatched gibberish":    {1, 0, 0},
	}}

	c := New(context.Background(), enc, 0.6, testLogger())
	result := c.Classify(context.Background(), "unmatched gibberish")

	assert.Equal(t, types.IntentRecommendation, result.Intent)
	assert.Equal(t, types.MethodEmbedding, result.Method)
}
