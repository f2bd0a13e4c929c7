package memvectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_ReturnsRefundPolicyAsTopMatch(t *testing.T) {
	store := New(BagOfWordsEmbedder{})

	results, err := store.Search(context.Background(), "What is the refund policy for cancellations?", 3)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "policy-refund-1", results[0].ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearch_UnrelatedQueryScoresLow(t *testing.T) {
	store := New(BagOfWordsEmbedder{})

	results, err := store.Search(context.Background(), "zzz unrelated gibberish qqq", 3)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0.0, results[0].Score)
}
