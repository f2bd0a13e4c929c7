package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRecorder_RecordQueryCompleteUpdatesWindowAndCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(testLogger(), reg, 16)
	defer r.Stop()

	r.RecordQueryComplete(context.Background(), "corr-1", "policy", 120)
	r.RecordQueryComplete(context.Background(), "corr-2", "policy", 80)

	p50, p95, p99 := r.Percentiles()
	assert.GreaterOrEqual(t, p50, int64(80))
	assert.GreaterOrEqual(t, p95, p50)
	assert.GreaterOrEqual(t, p99, p95)

	count := testutil.ToFloat64(r.queriesTotal.WithLabelValues("policy"))
	assert.Equal(t, float64(2), count)
}

func TestRecorder_RecordDenialIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(testLogger(), reg, 16)
	defer r.Stop()

	r.RecordDenial(context.Background(), "corr-1", "revenue", "scope_mismatch")

	count := testutil.ToFloat64(r.denialsTotal.WithLabelValues("revenue", "scope_mismatch"))
	assert.Equal(t, float64(1), count)
}

func TestRecorder_RecordFallbackIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(testLogger(), reg, 16)
	defer r.Stop()

	r.RecordFallback(context.Background(), "corr-1", "primary", "secondary", "timeout")

	assert.Equal(t, float64(1), r.FallbackCount("primary", "secondary", "timeout"))
	count := testutil.ToFloat64(r.fallbacksTotal.WithLabelValues("primary", "secondary", "timeout"))
	assert.Equal(t, float64(1), count)
}

func TestLatencyWindow_WrapsWithoutUnboundedGrowth(t *testing.T) {
	w := newLatencyWindow(4)
	for i := int64(1); i <= 10; i++ {
		w.add(i * 10)
	}
	p50, _, p99 := w.percentiles()
	require.NotZero(t, p50)
	assert.LessOrEqual(t, p99, int64(100))
}

func TestRecorder_StopFlushesBufferedEvents(t *testing.T) {
	r := NewRecorder(testLogger(), nil, 8)
	r.Record(context.Background(), &Event{Type: EventQueryReceived, CorrelationID: "corr-1"})
	r.Stop()
	time.Sleep(10 * time.Millisecond)
}
