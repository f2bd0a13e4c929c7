// Package vectorstore defines the narrow semantic-search contract the RAG
// Engine reads through.
package vectorstore

import "context"

// Result is one retrieved chunk, ordered by descending score by convention.
type Result struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]string
}

// Store performs similarity search over pre-embedded text chunks. Score is
// cosine similarity in [0,1] by contract (spec.md §9 open question: the
// exact metric is fixed to cosine; dot-product would require recalibrating
// the similarity threshold).
type Store interface {
	Search(ctx context.Context, text string, k int) ([]Result, error)
}
