// Package memstore is an in-memory reference implementation of store.Store,
// seeded with fixture listings, bookings, analytics events, saved items, and
// pending approvals for tests and local development.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skyconnectsl/travelcore-router/internal/store"
)

// MemStore holds fixed collections behind a RWMutex, matching the teacher's
// pattern of a mutex-guarded in-memory map for ancillary state.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string][]store.Record
}

func New() *MemStore {
	return &MemStore{collections: defaultFixtures()}
}

// Seed replaces a collection wholesale, used by tests that need bespoke data.
func (m *MemStore) Seed(collection string, records []store.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = records
}

func (m *MemStore) Query(ctx context.Context, collection string, filters []store.Filter, orderBy []store.OrderBy, limit int) ([]store.Record, error) {
	select {
	case <-ctx.Done():
		return nil, store.ErrUnavailable
	default:
	}

	m.mu.RLock()
	rows := append([]store.Record(nil), m.collections[collection]...)
	m.mu.RUnlock()

	rows = applyFilters(rows, filters)
	applyOrder(rows, orderBy)

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *MemStore) Aggregate(ctx context.Context, collection string, filters []store.Filter, ops []store.AggregateOp) (map[string]interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, store.ErrUnavailable
	default:
	}

	m.mu.RLock()
	rows := append([]store.Record(nil), m.collections[collection]...)
	m.mu.RUnlock()

	rows = applyFilters(rows, filters)

	out := make(map[string]interface{}, len(ops))
	for _, op := range ops {
		switch op.Op {
		case "count":
			out[op.Name] = len(rows)
		case "sum":
			var sum float64
			for _, r := range rows {
				sum += toFloat(r[op.Field])
			}
			out[op.Name] = sum
		case "avg":
			var sum float64
			for _, r := range rows {
				sum += toFloat(r[op.Field])
			}
			if len(rows) > 0 {
				out[op.Name] = sum / float64(len(rows))
			} else {
				out[op.Name] = 0.0
			}
		}
	}
	return out, nil
}

func applyFilters(rows []store.Record, filters []store.Filter) []store.Record {
	if len(filters) == 0 {
		return rows
	}
	var out []store.Record
	for _, r := range rows {
		if matchesAll(r, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r store.Record, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := r[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case "eq":
			if v != f.Value {
				return false
			}
		case "gte":
			if !compareTime(v, f.Value, func(a, b time.Time) bool { return a.Before(b) }) {
				return false
			}
		case "lte":
			if !compareTime(v, f.Value, func(a, b time.Time) bool { return a.After(b) }) {
				return false
			}
		}
	}
	return true
}

// compareTime reports whether the record passes the bound: true unless
// fail(recordTime, bound) holds. Values that are not time.Time pass.
func compareTime(recordVal, boundVal interface{}, fail func(a, b time.Time) bool) bool {
	rt, ok1 := recordVal.(time.Time)
	bt, ok2 := boundVal.(time.Time)
	if !ok1 || !ok2 {
		return true
	}
	return !fail(rt, bt)
}

func applyOrder(rows []store.Record, orderBy []store.OrderBy) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			cmp := compareValues(rows[i][ob.Field], rows[j][ob.Field])
			if cmp == 0 {
				continue
			}
			if ob.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0
		}
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case int:
		bv, _ := b.(int)
		return av - bv
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
