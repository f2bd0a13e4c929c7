package memvectorstore

import "strings"

// vocabulary is the fixed bag-of-words basis the fixture BagOfWordsEmbedder
// projects text onto. Real deployments call an external encoder; this is a
// deterministic stand-in for tests and local development.
var vocabulary = []string{
	"refund", "cancellation", "policy", "terms", "pdpa", "data", "privacy",
	"beach", "galle", "directions", "navigate", "nearest", "location", "map",
	"error", "payment", "booking", "login", "support", "not", "working",
	"checkout", "account", "password", "reset",
}

// BagOfWordsEmbedder is a deterministic fixture embedder: term presence
// against a fixed vocabulary, suitable for exercising the similarity gate in
// tests without a network call.
type BagOfWordsEmbedder struct{}

func (BagOfWordsEmbedder) Embed(text string) []float64 {
	normalized := strings.ToLower(text)
	vec := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		if strings.Contains(normalized, term) {
			vec[i] = 1
		}
	}
	return vec
}

func defaultFixtureChunks(embedder Embedder) []chunk {
	texts := []struct {
		id   string
		text string
	}{
		{"policy-refund-1", "Refunds are issued in full for cancellations made more than 48 hours before check-in. Cancellation policy terms apply per listing."},
		{"policy-pdpa-1", "Under PDPA, traveler data is retained for 24 months after the last booking and may be deleted on request."},
		{"nav-galle-1", "The nearest beach to Galle Fort is Unawatuna, roughly 15 minutes by tuk-tuk. Directions are available in the map view."},
		{"trouble-payment-1", "If checkout payment is not working, clear your browser cache and retry; persistent errors usually mean the card issuer declined the charge."},
		{"trouble-login-1", "A login error after password reset is usually resolved by requesting a new reset link; old links expire after one hour."},
	}

	chunks := make([]chunk, 0, len(texts))
	for _, t := range texts {
		chunks = append(chunks, chunk{
			id:     t.id,
			text:   t.text,
			vector: embedder.Embed(t.text),
		})
	}
	return chunks
}
