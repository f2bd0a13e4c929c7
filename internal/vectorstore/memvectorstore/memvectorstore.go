// Package memvectorstore is a cosine-similarity in-memory implementation of
// vectorstore.Store over pre-embedded fixture chunks, grounded on the
// teacher's narrow-interface-plus-in-memory-test-double pattern and on
// other_examples/9bb36543 (Tangerg-lynx ai/rag doc.go) for the
// citation/chunk assembly shape.
package memvectorstore

import (
	"context"
	"math"
	"sort"

	"github.com/skyconnectsl/travelcore-router/internal/vectorstore"
)

// Embedder turns text into a vector; the same contract the classifier's
// Encoder satisfies, but kept separate since RAG retrieval and intent
// classification are independent concerns.
type Embedder interface {
	Embed(text string) []float64
}

type chunk struct {
	id       string
	text     string
	vector   []float64
	metadata map[string]string
}

// MemVectorStore holds a fixed corpus of pre-embedded chunks.
type MemVectorStore struct {
	embedder Embedder
	chunks   []chunk
}

func New(embedder Embedder) *MemVectorStore {
	return &MemVectorStore{embedder: embedder, chunks: defaultFixtureChunks(embedder)}
}

func (m *MemVectorStore) Search(ctx context.Context, text string, k int) ([]vectorstore.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	queryVec := m.embedder.Embed(text)

	results := make([]vectorstore.Result, 0, len(m.chunks))
	for _, c := range m.chunks {
		results = append(results, vectorstore.Result{
			ID:       c.id,
			Text:     c.text,
			Score:    cosineSimilarity(queryVec, c.vector),
			Metadata: c.metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
