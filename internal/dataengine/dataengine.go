// Package dataengine implements the Data Engine (C5): deterministic reads
// against the record store for recommendations, saved items, analytics,
// revenue, and the moderation queue. Numeric aggregates never pass through
// a language model as free text (the containment invariant).
package dataengine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/woodsbury/decimal128"

	"github.com/skyconnectsl/travelcore-router/internal/store"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

const (
	defaultRecommendationLimit = 5
	moderationLimit            = 50
	defaultAnalyticsWindow     = 30 * 24 * time.Hour

	weightTagOverlap      = 3.0
	weightLocationMatch   = 2.0
	weightCategoryMatch   = 1.0
)

var knownLocations = []string{"galle", "kandy", "colombo", "unawatuna", "ella", "sigiriya"}
var knownCategories = []string{"accommodation", "tour", "transport", "activity"}

// Engine reads through a store.Store to answer DataRequests.
type Engine struct {
	store store.Store
}

func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// Handle dispatches by intent. Returns the sentinel store.ErrUnavailable
// unmodified so the Router can translate it to a "store_unavailable" refusal.
func (e *Engine) Handle(ctx context.Context, req *types.DataRequest) (*types.DataResult, error) {
	switch req.Intent {
	case types.IntentRecommendation:
		return e.recommendation(ctx, req)
	case types.IntentSavedItems:
		return e.savedItems(ctx, req)
	case types.IntentAnalytics:
		return e.analytics(ctx, req)
	case types.IntentRevenue:
		return e.revenue(ctx, req)
	case types.IntentModeration:
		return e.moderation(ctx, req)
	default:
		return nil, errors.New("dataengine: unsupported intent " + string(req.Intent))
	}
}

func (e *Engine) recommendation(ctx context.Context, req *types.DataRequest) (*types.DataResult, error) {
	rows, err := e.store.Query(ctx, "listings", nil, nil, 0)
	if err != nil {
		return nil, err
	}

	terms := extractTerms(req.Query)

	type scoredListing struct {
		record store.Record
		score  float64
	}

	scored := make([]scoredListing, 0, len(rows))
	for _, r := range rows {
		// A detected location or category narrows the candidates; the score
		// then ranks what is left.
		if loc, _ := r["location"].(string); len(terms.locations) > 0 && !terms.locations[strings.ToLower(loc)] {
			continue
		}
		if len(terms.categories) > 0 && scoreListing(r, extractedTerms{categories: terms.categories}) == 0 {
			continue
		}
		scored = append(scored, scoredListing{record: r, score: scoreListing(r, terms)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		ci, _ := scored[i].record["created_at"].(time.Time)
		cj, _ := scored[j].record["created_at"].(time.Time)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		idi, _ := scored[i].record["listing_id"].(string)
		idj, _ := scored[j].record["listing_id"].(string)
		return idi < idj
	})

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}
	if limit > len(scored) {
		limit = len(scored)
	}

	out := make([]map[string]interface{}, 0, limit)
	for _, s := range scored[:limit] {
		out = append(out, s.record)
	}

	return &types.DataResult{Records: out, TotalCount: len(out)}, nil
}

type extractedTerms struct {
	locations  map[string]bool
	categories map[string]bool
}

func extractTerms(query string) extractedTerms {
	normalized := strings.ToLower(query)
	terms := extractedTerms{locations: map[string]bool{}, categories: map[string]bool{}}

	for _, loc := range knownLocations {
		if strings.Contains(normalized, loc) {
			terms.locations[loc] = true
		}
	}
	for _, cat := range knownCategories {
		if strings.Contains(normalized, cat) {
			terms.categories[cat] = true
		}
	}
	return terms
}

func scoreListing(r store.Record, terms extractedTerms) float64 {
	var score float64

	if tags, ok := r["tags"].([]string); ok {
		for _, tag := range tags {
			if terms.categories[strings.ToLower(tag)] {
				score += weightTagOverlap
				break
			}
		}
	}

	if loc, ok := r["location"].(string); ok && terms.locations[strings.ToLower(loc)] {
		score += weightLocationMatch
	}

	if cat, ok := r["category"].(string); ok && terms.categories[strings.ToLower(cat)] {
		score += weightCategoryMatch
	}

	return score
}

func (e *Engine) savedItems(ctx context.Context, req *types.DataRequest) (*types.DataResult, error) {
	filters := []store.Filter{{Field: "user_id", Op: "eq", Value: req.ScopeUserID}}
	rows, err := e.store.Query(ctx, "saved_items", filters, []store.OrderBy{{Field: "saved_at", Desc: true}}, 0)
	if err != nil {
		return nil, err
	}
	return &types.DataResult{Records: rows, TotalCount: len(rows)}, nil
}

func (e *Engine) analytics(ctx context.Context, req *types.DataRequest) (*types.DataResult, error) {
	from, to := windowOrDefault(req.TimeRange)

	filters := store.TimeRangeFilters("occurred_at", from, to)
	if req.ScopePartnerID != "" {
		filters = append(filters, store.Filter{Field: "partner_id", Op: "eq", Value: req.ScopePartnerID})
	}

	viewFilters := append(append([]store.Filter{}, filters...), store.Filter{Field: "type", Op: "eq", Value: "view"})
	bookingFilters := append(append([]store.Filter{}, filters...), store.Filter{Field: "type", Op: "eq", Value: "booking"})
	ratingFilters := append(append([]store.Filter{}, filters...), store.Filter{Field: "type", Op: "eq", Value: "rating"})

	views, err := e.store.Aggregate(ctx, "analytics_events", viewFilters, []store.AggregateOp{{Name: "views", Op: "count"}})
	if err != nil {
		return nil, err
	}
	bookings, err := e.store.Aggregate(ctx, "analytics_events", bookingFilters, []store.AggregateOp{{Name: "bookings", Op: "count"}})
	if err != nil {
		return nil, err
	}
	ratings, err := e.store.Aggregate(ctx, "analytics_events", ratingFilters, []store.AggregateOp{{Name: "ratings", Op: "count"}})
	if err != nil {
		return nil, err
	}

	aggregates := map[string]interface{}{
		"views":    views["views"],
		"bookings": bookings["bookings"],
		"ratings":  ratings["ratings"],
	}
	return &types.DataResult{Aggregates: aggregates}, nil
}

func (e *Engine) revenue(ctx context.Context, req *types.DataRequest) (*types.DataResult, error) {
	from, to := windowOrDefault(req.TimeRange)
	filters := store.TimeRangeFilters("booked_at", from, to)
	if req.ScopePartnerID != "" {
		filters = append(filters, store.Filter{Field: "partner_id", Op: "eq", Value: req.ScopePartnerID})
	}

	rows, err := e.store.Query(ctx, "bookings", filters, nil, 0)
	if err != nil {
		return nil, err
	}

	var total decimal128.Decimal
	currency := "USD"
	for _, r := range rows {
		amount := toDecimal(r["total"])
		total = total.Add(amount)
		if c, ok := r["currency"].(string); ok && c != "" {
			currency = c
		}
	}

	revenueFloat, _ := total.Float64()
	aggregates := map[string]interface{}{
		"total_revenue": revenueFloat,
		"currency":      currency,
	}
	return &types.DataResult{Aggregates: aggregates, TotalCount: len(rows)}, nil
}

func toDecimal(v interface{}) decimal128.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal128.FromFloat64(n)
	case int:
		return decimal128.FromInt64(int64(n))
	default:
		return decimal128.Decimal{}
	}
}

func (e *Engine) moderation(ctx context.Context, req *types.DataRequest) (*types.DataResult, error) {
	rows, err := e.store.Query(ctx, "pending_approvals", nil, []store.OrderBy{{Field: "submitted_at", Desc: false}}, moderationLimit)
	if err != nil {
		return nil, err
	}
	return &types.DataResult{Records: rows, TotalCount: len(rows)}, nil
}

func windowOrDefault(tr *types.TimeRange) (time.Time, time.Time) {
	if tr != nil {
		return tr.From, tr.To
	}
	to := time.Now()
	return to.Add(-defaultAnalyticsWindow), to
}
