// Package classifier implements the two-stage intent classifier: a
// deterministic keyword fast path, falling back to embedding-similarity
// against precomputed centroids, in the manner of
// other_examples/ac2b19c6 (liliang-cn-rago router.FallbackLLMRecognizer) —
// try the fast path first, only fall back when it is inconclusive, and
// never return an error.
package classifier

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// Encoder embeds free text into a fixed-dimension vector. Implementations
// call out to an external encoder service (classifier.encoder_url).
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
}

// maxExpectedTerms is the number of matched keyword terms a query needs
// to be treated as a confident fast-path match; most real queries hit
// two or three terms from a list of four or five, never all of them.
const maxExpectedTerms = 2

var keywordTable = map[types.Intent][]string{
	types.IntentRecommendation:  {"show me", "find", "recommend", "suggest"},
	types.IntentSavedItems:      {"saved", "my saved", "wishlist", "favorites"},
	types.IntentAnalytics:       {"how many", "views", "stats", "performance"},
	types.IntentRevenue:         {"revenue", "earnings", "income", "payout"},
	types.IntentModeration:      {"pending approval", "moderate", "approve partner", "review application"},
	types.IntentPolicy:          {"policy", "refund", "cancellation", "terms", "pdpa"},
	types.IntentNavigation:      {"where is", "how do i get", "navigate", "directions"},
	types.IntentTroubleshooting: {"error", "can't", "cannot", "why is", "not working"},
}

// canonicalExamples seed the Stage 2 centroid embeddings. At least three per
// intent, per spec.md §4.3.
var canonicalExamples = map[types.Intent][]string{
	types.IntentRecommendation:  {"show me beach resorts", "find a tour in Kandy", "recommend a guesthouse"},
	types.IntentSavedItems:      {"show my saved listings", "what's on my wishlist", "my favorited tours"},
	types.IntentAnalytics:       {"how many views did I get", "show my listing stats", "booking performance this month"},
	types.IntentRevenue:         {"what is my revenue", "show my earnings", "monthly payout total"},
	types.IntentModeration:      {"show pending partner applications", "approve this listing", "review moderation queue"},
	types.IntentPolicy:          {"what is the refund policy", "cancellation terms", "pdpa data policy"},
	types.IntentNavigation:      {"where is the nearest beach", "how do I get to the hotel", "directions to Galle fort"},
	types.IntentTroubleshooting: {"booking error", "payment not working", "why can't I check out"},
}

var nonAlnumSpace = regexp.MustCompile(`[^a-z0-9 ]+`)
var whitespace = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumSpace.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Classifier produces an IntentClassification for each query.
type Classifier struct {
	encoder             Encoder
	logger              *logrus.Logger
	confidenceThreshold float64
	centroids           map[types.Intent][]float64
}

// New precomputes label centroids once at startup. encoder may be nil, in
// which case Stage 2 is always skipped in favor of the default branch.
func New(ctx context.Context, encoder Encoder, confidenceThreshold float64, logger *logrus.Logger) *Classifier {
	c := &Classifier{
		encoder:             encoder,
		logger:              logger,
		confidenceThreshold: confidenceThreshold,
		centroids:           make(map[types.Intent][]float64),
	}

	if encoder == nil {
		return c
	}

	for intent, examples := range canonicalExamples {
		var sum []float64
		n := 0
		for _, ex := range examples {
			vec, err := encoder.Encode(ctx, ex)
			if err != nil {
				logger.WithError(err).WithField("intent", intent).Warn("failed to embed canonical example at startup")
				continue
			}
			if sum == nil {
				sum = make([]float64, len(vec))
			}
			for i, v := range vec {
				sum[i] += v
			}
			n++
		}
		if n == 0 {
			continue
		}
		for i := range sum {
			sum[i] /= float64(n)
		}
		c.centroids[intent] = sum
	}

	return c
}

// Classify always returns a value; it never errors.
func (c *Classifier) Classify(ctx context.Context, query string) types.IntentClassification {
	kw, kwAccepted := c.keywordMatch(query)
	if kwAccepted {
		return kw
	}

	bestObserved := kw.Confidence

	if c.encoder != nil && len(c.centroids) > 0 {
		if emb, ok := c.embeddingMatch(ctx, query); ok {
			if emb.Confidence > bestObserved {
				bestObserved = emb.Confidence
			}
			if emb.Confidence > c.confidenceThreshold {
				return emb
			}
		}
	}

	return types.IntentClassification{
		Intent:     types.IntentRecommendation,
		Confidence: bestObserved,
		Method:     types.MethodDefault,
	}
}

func (c *Classifier) keywordMatch(query string) (types.IntentClassification, bool) {
	normalized := normalize(query)

	type scored struct {
		intent  types.Intent
		score   float64
		matched []string
	}

	var results []scored
	for _, intent := range types.AllIntents {
		terms := keywordTable[intent]
		var matched []string
		for _, term := range terms {
			if strings.Contains(normalized, term) {
				matched = append(matched, term)
			}
		}
		if len(matched) == 0 {
			continue
		}
		score := float64(len(matched)) / float64(maxExpectedTerms)
		if score > 0.95 {
			score = 0.95
		}
		results = append(results, scored{intent: intent, score: score, matched: matched})
	}

	if len(results) == 0 {
		return types.IntentClassification{}, false
	}

	precedence := make(map[types.Intent]int, len(types.AllIntents))
	for i, intent := range types.AllIntents {
		precedence[intent] = i
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return precedence[results[i].intent] < precedence[results[j].intent]
	})

	top := results[0]
	if top.score <= c.confidenceThreshold {
		return types.IntentClassification{}, false
	}

	return types.IntentClassification{
		Intent:       top.intent,
		Confidence:   top.score,
		Method:       types.MethodKeyword,
		MatchedTerms: top.matched,
	}, true
}

func (c *Classifier) embeddingMatch(ctx context.Context, query string) (types.IntentClassification, bool) {
	vec, err := c.encoder.Encode(ctx, query)
	if err != nil {
		c.logger.WithError(err).Warn("encoder unreachable, degrading to default branch")
		return types.IntentClassification{}, false
	}

	var bestIntent types.Intent
	bestScore := -1.0
	for intent, centroid := range c.centroids {
		score := cosineSimilarity(vec, centroid)
		if score > bestScore {
			bestScore = score
			bestIntent = intent
		}
	}

	if bestScore < 0 {
		return types.IntentClassification{}, false
	}

	return types.IntentClassification{
		Intent:     bestIntent,
		Confidence: bestScore,
		Method:     types.MethodEmbedding,
	}, true
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
