package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsRecorded   *prometheus.CounterVec
	EventWriteErrors *prometheus.CounterVec
	SendsRegistered  prometheus.Counter
	MailProcessed    *prometheus.CounterVec
	PollTicks        *prometheus.CounterVec
	PollDuration     prometheus.Histogram
	ActiveMonitors   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrack",
			Name:      "tracking_events_recorded_total",
			Help:      "Tracking events appended to the event store.",
		}, []string{"kind", "source"}),
		EventWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrack",
			Name:      "tracking_event_write_errors_total",
			Help:      "Failed best-effort event writes from recipient-facing endpoints.",
		}, []string{"source"}),
		SendsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailtrack",
			Name:      "sends_registered_total",
			Help:      "Outbound sends registered in the ledger.",
		}),
		MailProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrack",
			Name:      "mailbox_messages_processed_total",
			Help:      "Inbound mailbox messages by outcome.",
		}, []string{"outcome"}),
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtrack",
			Name:      "mailbox_poll_ticks_total",
			Help:      "Mailbox poller ticks by result.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mailtrack",
			Name:      "mailbox_poll_duration_seconds",
			Help:      "Duration of completed mailbox poll ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveMonitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mailtrack",
			Name:      "mailbox_monitors_active",
			Help:      "Mailbox workers currently running.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.EventsRecorded,
		m.EventWriteErrors,
		m.SendsRegistered,
		m.MailProcessed,
		m.PollTicks,
		m.PollDuration,
		m.ActiveMonitors,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The helpers below are safe on a nil *Metrics.

func (m *Metrics) EventRecorded(kind, source string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) EventWriteFailed(source string) {
	if m == nil {
		return
	}
	m.EventWriteErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) SendRegistered() {
	if m == nil {
		return
	}
	m.SendsRegistered.Inc()
}

func (m *Metrics) MessageProcessed(outcome string) {
	if m == nil {
		return
	}
	m.MailProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PollTick(result string, seconds float64) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(result).Inc()
	if seconds > 0 {
		m.PollDuration.Observe(seconds)
	}
}

func (m *Metrics) MonitorStarted() {
	if m == nil {
		return
	}
	m.ActiveMonitors.Inc()
}

func (m *Metrics) MonitorStopped() {
	if m == nil {
		return
	}
	m.ActiveMonitors.Dec()
}
