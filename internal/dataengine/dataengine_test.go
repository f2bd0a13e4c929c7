package dataengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnectsl/travelcore-router/internal/store/memstore"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

func TestEngine_Recommendation_FiltersByLocationAndCategory(t *testing.T) {
	eng := New(memstore.New())

	result, err := eng.Handle(context.Background(), &types.DataRequest{
		Intent: types.IntentRecommendation,
		Query:  "Show me beach resorts in Galle under $200",
		Limit:  5,
	})

	require.NoError(t, err)
	require.NotEmpty(t, result.Records)
	for _, r := range result.Records {
		assert.Equal(t, "Galle", r["location"])
	}
}

func TestEngine_SavedItems_ScopedToUser(t *testing.T) {
	eng := New(memstore.New())

	result, err := eng.Handle(context.Background(), &types.DataRequest{
		Intent:      types.IntentSavedItems,
		ScopeUserID: "u1",
	})

	require.NoError(t, err)
	for _, r := range result.Records {
		assert.Equal(t, "u1", r["user_id"])
	}
}

func TestEngine_Analytics_ReturnsIntegerAggregates(t *testing.T) {
	eng := New(memstore.New())

	result, err := eng.Handle(context.Background(), &types.DataRequest{
		Intent:         types.IntentAnalytics,
		ScopePartnerID: "p42",
	})

	require.NoError(t, err)
	assert.Contains(t, result.Aggregates, "views")
	assert.Contains(t, result.Aggregates, "bookings")
	assert.Contains(t, result.Aggregates, "ratings")
	assert.EqualValues(t, 2, result.Aggregates["ratings"])
}

func TestEngine_Revenue_SumsPartnerBookings(t *testing.T) {
	eng := New(memstore.New())

	result, err := eng.Handle(context.Background(), &types.DataRequest{
		Intent:         types.IntentRevenue,
		ScopePartnerID: "p42",
	})

	require.NoError(t, err)
	assert.InDelta(t, 240.0, result.Aggregates["total_revenue"], 0.001)
}

func TestEngine_Moderation_OrderedBySubmittedAtAscending(t *testing.T) {
	eng := New(memstore.New())

	result, err := eng.Handle(context.Background(), &types.DataRequest{Intent: types.IntentModeration})

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "a1", result.Records[0]["approval_id"])
}
