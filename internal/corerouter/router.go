// Package corerouter implements the Router (C7): the fixed
// classify -> authorize -> dispatch -> assemble pipeline that every
// /v1/query call runs through. It generalizes the teacher's
// routing.Router.RouteRequest orchestration (wall-clock budget, in-flight
// concurrency cap, structured event emission at each stage) to the new
// domain's two downstream engines instead of a single chat-completion call.
package corerouter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/access"
	"github.com/skyconnectsl/travelcore-router/internal/classifier"
	"github.com/skyconnectsl/travelcore-router/internal/dataengine"
	"github.com/skyconnectsl/travelcore-router/internal/gateway"
	"github.com/skyconnectsl/travelcore-router/internal/observability"
	"github.com/skyconnectsl/travelcore-router/internal/ragengine"
	"github.com/skyconnectsl/travelcore-router/internal/store"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

const (
	defaultTotalTimeout = 6000 * time.Millisecond
	defaultMaxInFlight  = 64
	defaultRagK         = 5
)

// dataIntents and ragIntents are the route table: which engine serves which
// intent. corerouter, not access, owns this table; New validates the two
// agree in intent coverage at startup.
var dataIntents = map[types.Intent]bool{
	types.IntentRecommendation: true,
	types.IntentSavedItems:     true,
	types.IntentAnalytics:      true,
	types.IntentRevenue:        true,
	types.IntentModeration:     true,
}

var ragIntents = map[types.Intent]bool{
	types.IntentPolicy:          true,
	types.IntentNavigation:      true,
	types.IntentTroubleshooting: true,
}

// narrationIntents are the only data-engine intents ever offered an optional
// LLM narration pass. analytics and revenue never reach the gateway at all:
// the containment invariant is enforced by routing them away from the LLM
// entirely, not merely by sanitizing what comes back.
var narrationIntents = map[types.Intent]bool{
	types.IntentRecommendation: true,
	types.IntentSavedItems:     true,
}

var digitRun = regexp.MustCompile(`\d+`)

// Config holds the router's tunables, sourced from config.Config.
type Config struct {
	TotalTimeout time.Duration
	MaxInFlight  int
	RagTopK      int
}

// Router ties the classifier, validator, and both engines into the single
// /v1/query pipeline.
type Router struct {
	classifier *classifier.Classifier
	dataEngine *dataengine.Engine
	ragEngine  *ragengine.Engine
	gateway    *gateway.Gateway
	recorder   *observability.Recorder
	logger     *logrus.Logger

	totalTimeout time.Duration
	ragTopK      int
	sem          chan struct{}
}

// New validates that the permission table (access.Intents) and this
// package's route table agree in intent coverage. A mismatch means an
// intent exists that nobody has wired an engine or a permission rule for;
// that is a programming error caught at startup, not a condition to survive
// at request time, so New panics rather than returning an error.
func New(cls *classifier.Classifier, de *dataengine.Engine, re *ragengine.Engine, gw *gateway.Gateway, rec *observability.Recorder, logger *logrus.Logger, cfg Config) *Router {
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = defaultTotalTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if cfg.RagTopK <= 0 {
		cfg.RagTopK = defaultRagK
	}

	validateCoverage()

	return &Router{
		classifier:   cls,
		dataEngine:   de,
		ragEngine:    re,
		gateway:      gw,
		recorder:     rec,
		logger:       logger,
		totalTimeout: cfg.TotalTimeout,
		ragTopK:      cfg.RagTopK,
		sem:          make(chan struct{}, cfg.MaxInFlight),
	}
}

func validateCoverage() {
	routed := make(map[types.Intent]bool, len(dataIntents)+len(ragIntents))
	for intent := range dataIntents {
		routed[intent] = true
	}
	for intent := range ragIntents {
		routed[intent] = true
	}

	permitted := make(map[types.Intent]bool, len(access.Intents()))
	for _, intent := range access.Intents() {
		permitted[intent] = true
	}

	for _, intent := range types.AllIntents {
		if !routed[intent] {
			panic(fmt.Sprintf("corerouter: intent %q has no route", intent))
		}
		if !permitted[intent] {
			panic(fmt.Sprintf("corerouter: intent %q has no permission table entry", intent))
		}
	}
}

// Handle runs the full pipeline and always returns a QueryResponse; a
// refusal is a response shape, never a Go error.
func (r *Router) Handle(ctx context.Context, req *types.CoreRequest) *types.QueryResponse {
	start := time.Now()

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	default:
		return &types.QueryResponse{
			DataSource: types.DataSourceRefused,
			Metadata: types.ResponseMetadata{
				CorrelationID: correlationID,
				LatencyMs:     time.Since(start).Milliseconds(),
				DenialReason:  types.DenialOverloaded,
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.totalTimeout)
	defer cancel()

	r.recorder.Record(ctx, &observability.Event{
		Type:          observability.EventQueryReceived,
		CorrelationID: correlationID,
		Fields:        map[string]interface{}{"user_id": req.UserID, "role": req.Role},
	})

	classification := r.classifier.Classify(ctx, req.Query)
	r.recorder.Record(ctx, &observability.Event{
		Type:          observability.EventIntentClassified,
		CorrelationID: correlationID,
		Fields: map[string]interface{}{
			"intent":     classification.Intent,
			"confidence": classification.Confidence,
			"method":     classification.Method,
		},
	})

	decision := access.Check(classification.Intent, req.Role, req.UserID, req.PartnerID)
	if !decision.Allowed {
		r.recorder.RecordDenial(ctx, correlationID, string(classification.Intent), decision.Reason)
		resp := refusal(correlationID, classification, decision.Reason)
		resp.Metadata.LatencyMs = time.Since(start).Milliseconds()
		return resp
	}
	r.recorder.Record(ctx, &observability.Event{
		Type:          observability.EventAccessAllowed,
		CorrelationID: correlationID,
		Fields:        map[string]interface{}{"intent": classification.Intent},
	})

	var resp *types.QueryResponse
	switch {
	case dataIntents[classification.Intent]:
		resp = r.handleData(ctx, req, classification, decision, correlationID)
	case ragIntents[classification.Intent]:
		resp = r.handleRag(ctx, req, classification, correlationID)
	default:
		resp = refusal(correlationID, classification, types.DenialInternalError)
	}

	latencyMs := time.Since(start).Milliseconds()
	resp.Metadata.LatencyMs = latencyMs
	r.recorder.RecordQueryComplete(ctx, correlationID, string(classification.Intent), latencyMs)
	return resp
}

func refusal(correlationID string, c types.IntentClassification, reason string) *types.QueryResponse {
	return &types.QueryResponse{
		Intent:     c.Intent,
		DataSource: types.DataSourceRefused,
		Metadata: types.ResponseMetadata{
			CorrelationID:        correlationID,
			IntentConfidence:     c.Confidence,
			ClassificationMethod: c.Method,
			DenialReason:         reason,
		},
	}
}

func (r *Router) handleData(ctx context.Context, req *types.CoreRequest, c types.IntentClassification, decision types.AccessDecision, correlationID string) *types.QueryResponse {
	dataReq := &types.DataRequest{
		Intent:         c.Intent,
		Query:          req.Query,
		ScopeUserID:    decision.ScopeUserID,
		ScopePartnerID: decision.ScopePartnerID,
	}
	if req.Options != nil {
		dataReq.Limit = req.Options.MaxRecords
	}

	result, err := r.dataEngine.Handle(ctx, dataReq)
	if err != nil {
		reason := types.DenialInternalError
		switch {
		case errors.Is(err, store.ErrUnavailable):
			reason = types.DenialStoreUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			reason = types.DenialTimeout
		}
		r.logger.WithError(err).WithField("intent", c.Intent).Warn("data engine query failed")
		return refusal(correlationID, c, reason)
	}

	r.recorder.Record(ctx, &observability.Event{
		Type:          observability.EventStoreQueryComplete,
		CorrelationID: correlationID,
		Fields:        map[string]interface{}{"intent": c.Intent, "record_count": len(result.Records)},
	})

	responseText, providerID, llmUsed := r.narrate(ctx, c.Intent, result, correlationID)

	return &types.QueryResponse{
		Intent:       c.Intent,
		DataSource:   types.DataSourceDatabase,
		ResponseText: responseText,
		Records:      result.Records,
		Aggregates:   result.Aggregates,
		Metadata: types.ResponseMetadata{
			CorrelationID:        correlationID,
			IntentConfidence:     c.Confidence,
			ClassificationMethod: c.Method,
			LlmProvider:          providerID,
			LlmUsed:              llmUsed,
		},
	}
}

func (r *Router) handleRag(ctx context.Context, req *types.CoreRequest, c types.IntentClassification, correlationID string) *types.QueryResponse {
	result, err := r.ragEngine.Handle(ctx, &types.RagRequest{Query: req.Query, Intent: c.Intent, K: r.ragTopK, CorrelationID: correlationID})
	if err != nil {
		reason := types.DenialInternalError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = types.DenialTimeout
		}
		r.logger.WithError(err).WithField("intent", c.Intent).Warn("rag engine query failed")
		return refusal(correlationID, c, reason)
	}

	r.recorder.Record(ctx, &observability.Event{
		Type:          observability.EventRagQueryComplete,
		CorrelationID: correlationID,
		Fields:        map[string]interface{}{"intent": c.Intent, "best_score": result.BestScore, "refused": result.Refused},
	})

	if result.LlmUsed {
		r.recorder.RecordProviderSuccess(result.LlmProvider)
	}

	dataSource := types.DataSourceRag
	if result.Refused {
		dataSource = types.DataSourceRefused
	}

	return &types.QueryResponse{
		Intent:       c.Intent,
		DataSource:   dataSource,
		ResponseText: result.ResponseText,
		Citations:    ragengine.Citations(result),
		Metadata: types.ResponseMetadata{
			CorrelationID:        correlationID,
			IntentConfidence:     c.Confidence,
			ClassificationMethod: c.Method,
			LlmProvider:          result.LlmProvider,
			LlmUsed:              result.LlmUsed,
			DenialReason:         result.Reason,
		},
	}
}

// narrate optionally asks the gateway for a short introductory sentence for
// recommendation/saved_items results. The LLM is never trusted with the
// numbers: its prose has every digit run stripped, and the authoritative
// counts always come from a fixed template built directly off the
// DataResult, never from the model's output.
func (r *Router) narrate(ctx context.Context, intent types.Intent, result *types.DataResult, correlationID string) (string, string, bool) {
	summary := templatedSummary(intent, result)

	if !narrationIntents[intent] || r.gateway == nil || !r.gateway.AnyHealthy() {
		return summary, "", false
	}

	resp, err := r.gateway.Complete(ctx, &types.LlmRequest{
		System:        "Write one short, friendly sentence introducing these results. Never state counts or totals; those are appended separately.",
		User:          narrationPrompt(intent, result),
		MaxTokens:     120,
		Temperature:   0.3,
		CorrelationID: correlationID,
	})
	if err != nil {
		r.logger.WithError(err).Warn("narration llm call failed, falling back to templated summary")
		return summary, "", false
	}

	r.recorder.RecordProviderSuccess(resp.ProviderID)
	sanitized := strings.TrimSpace(digitRun.ReplaceAllString(resp.Text, ""))
	if sanitized == "" {
		return summary, resp.ProviderID, true
	}
	return sanitized + " " + summary, resp.ProviderID, true
}

func narrationPrompt(intent types.Intent, result *types.DataResult) string {
	var titles []string
	for _, rec := range result.Records {
		if title, ok := rec["title"].(string); ok {
			titles = append(titles, title)
		}
	}
	return fmt.Sprintf("Intent: %s. Result titles: %s", intent, strings.Join(titles, ", "))
}

func templatedSummary(intent types.Intent, result *types.DataResult) string {
	switch intent {
	case types.IntentRecommendation:
		return fmt.Sprintf("Found %d matching listings.", len(result.Records))
	case types.IntentSavedItems:
		return fmt.Sprintf("You have %d saved items.", len(result.Records))
	case types.IntentAnalytics:
		return fmt.Sprintf("Views: %v, bookings: %v.", result.Aggregates["views"], result.Aggregates["bookings"])
	case types.IntentRevenue:
		return fmt.Sprintf("Total revenue: %v %v.", result.Aggregates["total_revenue"], result.Aggregates["currency"])
	case types.IntentModeration:
		return fmt.Sprintf("%d applications pending review.", len(result.Records))
	default:
		return ""
	}
}
