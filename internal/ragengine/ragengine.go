// Package ragengine implements the RAG Engine (C6): semantic retrieval with
// a similarity gate, a hard containment refusal for intents that must never
// be answered from unstructured text, citation assembly, and LLM synthesis
// that degrades to templated extraction when no provider is available.
package ragengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skyconnectsl/travelcore-router/internal/gateway"
	"github.com/skyconnectsl/travelcore-router/internal/types"
	"github.com/skyconnectsl/travelcore-router/internal/vectorstore"
)

const (
	defaultSimilarityThreshold = 0.75
	synthesisTemperature       = 0.3
	defaultMaxTokens           = 400
)

// containedIntents must never be answered from retrieved text regardless of
// similarity score: the store must not be used as a source of numeric truth.
var containedIntents = map[types.Intent]bool{
	types.IntentAnalytics:  true,
	types.IntentRevenue:    true,
	types.IntentModeration: true,
}

const insufficientContextText = "I don't have enough information on that topic."

// Engine retrieves chunks and optionally synthesizes an answer via the LLM
// Gateway.
type Engine struct {
	store               vectorstore.Store
	gateway             *gateway.Gateway
	similarityThreshold float64
}

func New(store vectorstore.Store, gw *gateway.Gateway, similarityThreshold float64) *Engine {
	if similarityThreshold <= 0 {
		similarityThreshold = defaultSimilarityThreshold
	}
	return &Engine{store: store, gateway: gw, similarityThreshold: similarityThreshold}
}

// Handle runs the retrieve -> gate -> (contain) -> synthesize pipeline.
// It never returns an error for ordinary refusals; only a context
// cancellation or an unexpected store failure propagates as an error.
func (e *Engine) Handle(ctx context.Context, req *types.RagRequest) (*types.RagResult, error) {
	if containedIntents[req.Intent] {
		return &types.RagResult{Refused: true, Reason: "rag_cannot_serve_live_data", ResponseText: insufficientContextText}, nil
	}

	k := req.K
	if k <= 0 {
		k = 5
	}

	hits, err := e.store.Search(ctx, req.Query, k)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	bestScore := 0.0
	if len(hits) > 0 {
		bestScore = hits[0].Score
	}

	if bestScore < e.similarityThreshold {
		return &types.RagResult{BestScore: bestScore, Refused: true, Reason: "insufficient_context", ResponseText: insufficientContextText}, nil
	}

	chunks := toChunks(hits)

	if e.gateway == nil || !e.gateway.AnyHealthy() {
		return e.degradeToTemplated(chunks, bestScore), nil
	}

	text, providerID, err := e.synthesize(ctx, req.Query, chunks, req.CorrelationID)
	if err != nil {
		return e.degradeToTemplated(chunks, bestScore), nil
	}

	return &types.RagResult{
		Chunks:       chunks,
		ResponseText: text,
		LlmProvider:  providerID,
		LlmUsed:      true,
		BestScore:    bestScore,
	}, nil
}

func toChunks(hits []vectorstore.Result) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, types.Chunk{SourceID: h.ID, Text: h.Text, Score: h.Score})
	}
	return chunks
}

// synthesize pins the model to the retrieved context only: cite chunk ids,
// say you don't know when context is insufficient.
func (e *Engine) synthesize(ctx context.Context, query string, chunks []types.Chunk, correlationID string) (string, string, error) {
	system := "Answer only from the provided context. Cite chunk ids in brackets. " +
		"Say you don't know when the context is insufficient."

	var user strings.Builder
	fmt.Fprintf(&user, "Question: %s\n\nContext:\n", query)
	for _, c := range chunks {
		fmt.Fprintf(&user, "[%s] %s\n", c.SourceID, c.Text)
	}

	resp, err := e.gateway.Complete(ctx, &types.LlmRequest{
		System:        system,
		User:          user.String(),
		MaxTokens:     defaultMaxTokens,
		Temperature:   synthesisTemperature,
		CorrelationID: correlationID,
	})
	if err != nil {
		return "", "", err
	}
	return resp.Text, resp.ProviderID, nil
}

// degradeToTemplated composes a response from the top chunk's verbatim text
// plus citation, never fabricating connective prose, per spec.md §4.6 step 5.
func (e *Engine) degradeToTemplated(chunks []types.Chunk, bestScore float64) *types.RagResult {
	if len(chunks) == 0 {
		return &types.RagResult{BestScore: bestScore, Refused: true, Reason: "insufficient_context", ResponseText: insufficientContextText}
	}
	top := chunks[0]
	text := fmt.Sprintf("%s [%s]", top.Text, top.SourceID)
	return &types.RagResult{
		Chunks:       chunks,
		ResponseText: text,
		BestScore:    bestScore,
	}
}

// Citations returns the public citation list for a RagResult.
func Citations(result *types.RagResult) []types.Citation {
	citations := make([]types.Citation, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		citations = append(citations, types.Citation{SourceID: c.SourceID, Score: c.Score})
	}
	return citations
}
