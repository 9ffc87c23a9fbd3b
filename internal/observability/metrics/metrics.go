package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for the booking widget.
type WidgetMetrics struct {
	sessionsStarted   prometheus.Counter
	appointmentsTotal *prometheus.CounterVec
	hydrationSeconds  prometheus.Histogram
	gatewayLatency    *prometheus.HistogramVec
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstudio",
			Subsystem: "widget",
			Name:      "sessions_started_total",
			Help:      "Total widget sessions with a resolved business identity",
		}),
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstudio",
			Subsystem: "widget",
			Name:      "appointments_total",
			Help:      "Appointment submissions by outcome",
		}, []string{"status"}),
		hydrationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netstudio",
			Subsystem: "widget",
			Name:      "hydration_seconds",
			Help:      "Time to hydrate business data for a new session",
			Buckets:   prometheus.DefBuckets,
		}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netstudio",
			Subsystem: "widget",
			Name:      "gateway_latency_seconds",
			Help:      "Latency of data service calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessionsStarted, m.appointmentsTotal, m.hydrationSeconds, m.gatewayLatency)
	return m
}

func (m *WidgetMetrics) ObserveSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

// ObserveAppointment records a submission outcome: "confirmed", "rejected"
// (gateway failure) or "invalid" (validation failure).
func (m *WidgetMetrics) ObserveAppointment(status string) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(status).Inc()
}

func (m *WidgetMetrics) ObserveHydration(seconds float64) {
	if m == nil {
		return
	}
	m.hydrationSeconds.Observe(seconds)
}

func (m *WidgetMetrics) ObserveGatewayLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(operation).Observe(seconds)
}
