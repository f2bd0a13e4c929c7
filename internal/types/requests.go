package types

import "time"

// CoreRequest is the logical entry shape accepted by the router (spec.md §6).
// The HTTP surface that parses this out of a request body is out of scope
// for the core; internal/server only deserializes into this struct.
type CoreRequest struct {
	Query         string          `json:"query"`
	UserID        string          `json:"user_id"`
	Role          Role            `json:"role"`
	PartnerID     string          `json:"partner_id,omitempty"`
	Options       *RequestOptions `json:"options,omitempty"`
	CorrelationID string          `json:"-"`
	ReceivedAt    time.Time       `json:"-"`
}

type RequestOptions struct {
	IncludeRaw bool `json:"include_raw"`
	MaxRecords int  `json:"max_records"`
}

// AccessDecision is the output of the Role/Scope Validator (C4).
type AccessDecision struct {
	Allowed        bool
	Reason         string
	ScopeUserID    string
	ScopePartnerID string
}

// TimeRange bounds a query over the record store; a nil *TimeRange on a
// DataRequest means "apply the engine's default window".
type TimeRange struct {
	From time.Time
	To   time.Time
}

// DataRequest is passed from the Router to the Data Engine (C5).
type DataRequest struct {
	Intent         Intent
	Query          string
	ScopeUserID    string
	ScopePartnerID string
	TimeRange      *TimeRange
	Limit          int
}

// RagRequest is passed from the Router to the RAG Engine (C6).
type RagRequest struct {
	Query         string
	Intent        Intent
	K             int
	CorrelationID string
}

// LlmRequest is issued by an engine to the LLM Gateway. The system prompt is
// always supplied by the calling engine, never by the caller of the core.
// CorrelationID is optional and, when set, lets the Gateway attribute a
// fallback transition back to the query that triggered it.
type LlmRequest struct {
	System        string
	User          string
	MaxTokens     int
	Temperature   float64
	CorrelationID string
}
