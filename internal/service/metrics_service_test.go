package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordTransition("DEAN_REVIEW", "AWAITING_PAYMENT")
	m.RecordTransition("DEAN_REVIEW", "AWAITING_PAYMENT")
	m.RecordGate("quarter", "unmet")
	m.RecordPayment("CASH")
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/enrollment-batches/:id", http.StatusOK, 15*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("DEAN_REVIEW", "AWAITING_PAYMENT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.gateOutcomes.WithLabelValues("quarter", "unmet")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.paymentsTotal.WithLabelValues("CASH")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/v1/enrollment-batches/:id", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "enrollment_batch_transitions_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordTransition("a", "b")
	m.RecordGate("batch", "met")
	m.RecordPayment("CASH")
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
