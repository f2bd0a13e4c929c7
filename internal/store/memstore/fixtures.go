package memstore

import (
	"time"

	"github.com/skyconnectsl/travelcore-router/internal/store"
)

func defaultFixtures() map[string][]store.Record {
	now := time.Now().UTC()

	return map[string][]store.Record{
		"listings": {
			{
				"listing_id": "l1", "partner_id": "p42", "title": "Galle Fort Beach Resort",
				"category": "accommodation", "location": "Galle", "price": 150.0,
				"tags": []string{"beach", "resort"}, "rating": 4.6,
				"created_at": now.AddDate(0, 0, -10),
			},
			{
				"listing_id": "l2", "partner_id": "p42", "title": "Unawatuna Beach Bungalow",
				"category": "accommodation", "location": "Galle", "price": 90.0,
				"tags": []string{"beach", "budget"}, "rating": 4.2,
				"created_at": now.AddDate(0, 0, -20),
			},
			{
				"listing_id": "l3", "partner_id": "p17", "title": "Kandy Hill Country Tour",
				"category": "tour", "location": "Kandy", "price": 60.0,
				"tags": []string{"tour", "mountains"}, "rating": 4.8,
				"created_at": now.AddDate(0, 0, -5),
			},
			{
				"listing_id": "l4", "partner_id": "p42", "title": "Galle Fort City Walk",
				"category": "tour", "location": "Galle", "price": 25.0,
				"tags": []string{"tour", "walk"}, "rating": 4.4,
				"created_at": now.AddDate(0, 0, -1),
			},
		},
		"bookings": {
			{"booking_id": "b1", "partner_id": "p42", "listing_id": "l1", "total": 150.0, "currency": "USD", "booked_at": now.AddDate(0, 0, -3)},
			{"booking_id": "b2", "partner_id": "p42", "listing_id": "l2", "total": 90.0, "currency": "USD", "booked_at": now.AddDate(0, 0, -6)},
			{"booking_id": "b3", "partner_id": "p17", "listing_id": "l3", "total": 60.0, "currency": "USD", "booked_at": now.AddDate(0, 0, -2)},
		},
		"analytics_events": {
			{"event_id": "e1", "partner_id": "p42", "listing_id": "l1", "type": "view", "occurred_at": now.AddDate(0, 0, -1)},
			{"event_id": "e2", "partner_id": "p42", "listing_id": "l1", "type": "view", "occurred_at": now.AddDate(0, 0, -2)},
			{"event_id": "e3", "partner_id": "p42", "listing_id": "l2", "type": "booking", "occurred_at": now.AddDate(0, 0, -3)},
			{"event_id": "e4", "partner_id": "p17", "listing_id": "l3", "type": "view", "occurred_at": now.AddDate(0, 0, -1)},
			{"event_id": "e5", "partner_id": "p42", "listing_id": "l1", "type": "rating", "occurred_at": now.AddDate(0, 0, -2)},
			{"event_id": "e6", "partner_id": "p42", "listing_id": "l2", "type": "rating", "occurred_at": now.AddDate(0, 0, -5)},
		},
		"saved_items": {
			{"saved_id": "s1", "user_id": "u1", "listing_id": "l1", "saved_at": now.AddDate(0, 0, -1)},
			{"saved_id": "s2", "user_id": "u1", "listing_id": "l3", "saved_at": now.AddDate(0, 0, -4)},
		},
		"pending_approvals": {
			{"approval_id": "a1", "type": "partner_application", "subject_id": "p200", "submitted_at": now.AddDate(0, 0, -2)},
			{"approval_id": "a2", "type": "listing", "subject_id": "l99", "submitted_at": now.AddDate(0, 0, -1)},
		},
	}
}
