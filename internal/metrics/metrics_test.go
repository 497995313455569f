package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New()

	m.EventsRecorded.WithLabelValues("open", "pixel").Inc()
	m.EventsRecorded.WithLabelValues("open", "pixel").Inc()
	m.MailProcessed.WithLabelValues("duplicate").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsRecorded.WithLabelValues("open", "pixel")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MailProcessed.WithLabelValues("duplicate")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mailtrack_tracking_events_recorded_total")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventRecorded("open", "pixel")
		m.EventWriteFailed("pixel")
		m.SendRegistered()
		m.MessageProcessed("ignored")
		m.PollTick("ok", 1)
		m.MonitorStarted()
		m.MonitorStopped()
	})
}
