// Package observability generalizes the teacher's security.AuditLogger
// (buffered channel, background flush goroutine, logrus structured fields,
// severity levels) into structured query-lifecycle events, plus a bounded
// latency window and Prometheus counters for the router.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
)

// EventType enumerates the structured events the router emits across one
// query's lifecycle.
type EventType string

const (
	EventQueryReceived      EventType = "query_received"
	EventIntentClassified   EventType = "intent_classified"
	EventAccessAllowed      EventType = "access_allowed"
	EventAccessDenied       EventType = "access_denied"
	EventRouteSelected      EventType = "route_selected"
	EventStoreQueryComplete EventType = "store_query_complete"
	EventRagQueryComplete   EventType = "rag_query_complete"
	EventLlmCall            EventType = "llm_call"
	EventLlmFallback        EventType = "llm_fallback"
	EventQueryComplete      EventType = "query_complete"
	EventQueryError         EventType = "query_error"
)

// Event is one structured observability record, always carrying the
// correlation id that ties it back to a single /v1/query call.
type Event struct {
	Type          EventType
	CorrelationID string
	Timestamp     time.Time
	Fields        map[string]interface{}
}

const defaultBufferSize = 1000
const defaultFlushInterval = 2 * time.Second

// Recorder buffers events on a channel and flushes them to structured logs
// on a background goroutine, and additionally maintains a bounded latency
// window and Prometheus counters consulted synchronously.
type Recorder struct {
	logger *logrus.Logger

	buffer   chan *Event
	stopChan chan struct{}
	wg       sync.WaitGroup

	window *latencyWindow

	queriesTotal    *prometheus.CounterVec
	denialsTotal    *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	providerSuccess *prometheus.CounterVec
}

// NewRecorder builds a Recorder and, if registerer is non-nil, registers its
// Prometheus collectors. windowSize is the rolling latency buffer capacity
// (observability.window_size, default 1024).
func NewRecorder(logger *logrus.Logger, registerer prometheus.Registerer, windowSize int) *Recorder {
	if windowSize <= 0 {
		windowSize = 1024
	}

	r := &Recorder{
		logger:   logger,
		buffer:   make(chan *Event, defaultBufferSize),
		stopChan: make(chan struct{}),
		window:   newLatencyWindow(windowSize),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelcore_router_queries_total",
			Help: "Total queries handled, labeled by intent.",
		}, []string{"intent"}),
		denialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelcore_router_denials_total",
			Help: "Total access denials, labeled by intent and reason.",
		}, []string{"intent", "reason"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelcore_router_llm_fallbacks_total",
			Help: "Total LLM provider fallback transitions, labeled by from/to provider and error class.",
		}, []string{"from", "to", "class"}),
		providerSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelcore_router_provider_success_total",
			Help: "Total successful LLM completions, labeled by provider.",
		}, []string{"provider"}),
	}

	if registerer != nil {
		registerer.MustRegister(r.queriesTotal, r.denialsTotal, r.fallbacksTotal, r.providerSuccess)
	}

	r.wg.Add(1)
	go r.eventProcessor()

	return r
}

// Record enqueues an event for background flushing to structured logs. A
// full buffer drops the event with a warning rather than blocking the
// request path.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case r.buffer <- event:
	default:
		r.logger.Warn("observability buffer full, dropping event")
	}
}

// RecordQueryComplete additionally updates the latency window and the
// per-intent query counter, both consulted synchronously by callers (e.g.
// a /metrics or /debug/latency handler), unlike the buffered log event.
func (r *Recorder) RecordQueryComplete(ctx context.Context, correlationID, intent string, latencyMs int64) {
	r.window.add(latencyMs)
	r.queriesTotal.WithLabelValues(intent).Inc()
	r.Record(ctx, &Event{
		Type:          EventQueryComplete,
		CorrelationID: correlationID,
		Fields: map[string]interface{}{
			"intent":     intent,
			"latency_ms": latencyMs,
		},
	})
}

// RecordDenial updates the denial counter and logs the structured event.
func (r *Recorder) RecordDenial(ctx context.Context, correlationID, intent, reason string) {
	r.denialsTotal.WithLabelValues(intent, reason).Inc()
	r.Record(ctx, &Event{
		Type:          EventAccessDenied,
		CorrelationID: correlationID,
		Fields: map[string]interface{}{
			"intent": intent,
			"reason": reason,
		},
	})
}

// RecordFallback updates the fallback counter and logs the structured event.
func (r *Recorder) RecordFallback(ctx context.Context, correlationID, from, to, class string) {
	r.fallbacksTotal.WithLabelValues(from, to, class).Inc()
	r.Record(ctx, &Event{
		Type:          EventLlmFallback,
		CorrelationID: correlationID,
		Fields: map[string]interface{}{
			"from":  from,
			"to":    to,
			"class": class,
		},
	})
}

// FallbackCount reads back the current value of the fallback counter for one
// (from, to, class) triple, for callers (tests, the Gateway) that need to
// confirm a transition was actually reported rather than just logged.
func (r *Recorder) FallbackCount(from, to, class string) float64 {
	var m dto.Metric
	if err := r.fallbacksTotal.WithLabelValues(from, to, class).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// RecordProviderSuccess updates the per-provider success counter.
func (r *Recorder) RecordProviderSuccess(provider string) {
	r.providerSuccess.WithLabelValues(provider).Inc()
}

// Percentiles returns p50, p95, p99 latency in milliseconds over the current
// rolling window. Each is 0 if the window is empty.
func (r *Recorder) Percentiles() (p50, p95, p99 int64) {
	return r.window.percentiles()
}

// Stop drains and flushes any buffered events, then stops the background
// goroutine. Safe to call once during shutdown.
func (r *Recorder) Stop() {
	close(r.stopChan)
	r.wg.Wait()
}

func (r *Recorder) eventProcessor() {
	defer r.wg.Done()

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	pending := make([]*Event, 0, 100)

	flush := func() {
		for _, event := range pending {
			r.writeEvent(event)
		}
		pending = pending[:0]
	}

	for {
		select {
		case event := <-r.buffer:
			pending = append(pending, event)
			if len(pending) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.stopChan:
			for {
				select {
				case event := <-r.buffer:
					pending = append(pending, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (r *Recorder) writeEvent(event *Event) {
	fields := logrus.Fields{
		"event_type":     event.Type,
		"correlation_id": event.CorrelationID,
		"timestamp":      event.Timestamp,
	}
	for k, v := range event.Fields {
		fields[k] = v
	}
	r.logger.WithFields(fields).Info(string(event.Type))
}
