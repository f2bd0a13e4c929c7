package types

// Chunk is one retrieved passage from the vector store, carried through the
// RAG Engine into the final response as a citation.
type Chunk struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// DataResult is what the Data Engine (C5) returns for a structured-path query.
// Aggregates holds engine-computed summaries (e.g. total_revenue) keyed by
// name; Records holds row-shaped results. An engine returns one or the other,
// never a partially-filled mix driven by caller preference.
type DataResult struct {
	Records    []map[string]interface{} `json:"records,omitempty"`
	Aggregates map[string]interface{}   `json:"aggregates,omitempty"`
	TotalCount int                      `json:"total_count"`
}

// RagResult is what the RAG Engine (C6) returns before final response assembly.
type RagResult struct {
	Chunks       []Chunk `json:"chunks"`
	ResponseText string  `json:"response_text"`
	LlmProvider  string  `json:"llm_provider,omitempty"`
	LlmUsed      bool    `json:"llm_used"`
	BestScore    float64 `json:"best_score"`
	Refused      bool    `json:"refused"`
	Reason       string  `json:"reason,omitempty"`
}

// LlmResponse is what the LLM Gateway (C2) returns for a completion call.
type LlmResponse struct {
	Text       string `json:"text"`
	ProviderID string `json:"provider_id"`
	LatencyMs  int64  `json:"latency_ms"`
}

// Citation is the public, trimmed-down form of a Chunk surfaced to callers.
type Citation struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// ResponseMetadata carries the diagnostic trail for one query, echoed back to
// the caller and also emitted as a structured observability event.
type ResponseMetadata struct {
	CorrelationID        string               `json:"correlation_id"`
	LatencyMs            int64                `json:"latency_ms"`
	IntentConfidence     float64              `json:"intent_confidence"`
	ClassificationMethod ClassificationMethod `json:"classification_method"`
	LlmProvider          string               `json:"llm_provider,omitempty"`
	LlmUsed              bool                 `json:"llm_used"`
	DenialReason         string               `json:"denial_reason,omitempty"`
}

// QueryResponse is the single public response envelope returned by the
// Router (C7) for every /v1/query call, successful or refused.
type QueryResponse struct {
	Intent       Intent                   `json:"intent"`
	DataSource   DataSource               `json:"data_source"`
	ResponseText string                   `json:"response_text"`
	Records      []map[string]interface{} `json:"records,omitempty"`
	Aggregates   map[string]interface{}   `json:"aggregates,omitempty"`
	Citations    []Citation               `json:"citations,omitempty"`
	Metadata     ResponseMetadata         `json:"metadata"`
}
