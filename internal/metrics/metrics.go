// Package metrics exposes prometheus instrumentation for groupbot processes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider is the instrumentation surface used across groupbot.
type Provider interface {
	SetBotUp(bot string, up bool)
	IncBotStart(bot, result string)
	IncForward(channel string)
	IncForwardFailure(reason string)
	SetMonitoredChannels(n int)
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
}

// PrometheusProvider records into a prometheus registry.
type PrometheusProvider struct {
	botUp             *prometheus.GaugeVec
	botStarts         *prometheus.CounterVec
	forwards          *prometheus.CounterVec
	forwardFailures   *prometheus.CounterVec
	monitoredChannels prometheus.Gauge
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New returns a provider registered on a fresh registry, or a no-op
// provider when disabled.
func New(enabled bool) Provider {
	if !enabled {
		return Noop()
	}
	return NewPrometheus(prometheus.NewRegistry())
}

// NewPrometheus registers the groupbot collectors plus process and Go
// runtime collectors on reg.
func NewPrometheus(reg *prometheus.Registry) *PrometheusProvider {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusProvider{
		botUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "groupbot_bot_up",
			Help: "Whether a managed bot process is running",
		}, []string{"bot"}),

		botStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbot_bot_starts_total",
			Help: "Start attempts per managed bot by result",
		}, []string{"bot", "result"}),

		forwards: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbot_forwards_total",
			Help: "Messages forwarded per source channel",
		}, []string{"channel"}),

		forwardFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbot_forward_failures_total",
			Help: "Dropped forwards by reason",
		}, []string{"reason"}),

		monitoredChannels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "groupbot_monitored_channels",
			Help: "Resolved channels in the monitored set",
		}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbot_http_requests_total",
			Help: "Total number of dashboard HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groupbot_http_request_duration_seconds",
			Help:    "Dashboard HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		gatherer: reg,
	}
}

func (m *PrometheusProvider) SetBotUp(bot string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.botUp.WithLabelValues(bot).Set(v)
}

func (m *PrometheusProvider) IncBotStart(bot, result string) {
	m.botStarts.WithLabelValues(bot, result).Inc()
}

func (m *PrometheusProvider) IncForward(channel string) {
	m.forwards.WithLabelValues(channel).Inc()
}

func (m *PrometheusProvider) IncForwardFailure(reason string) {
	m.forwardFailures.WithLabelValues(reason).Inc()
}

func (m *PrometheusProvider) SetMonitoredChannels(n int) {
	m.monitoredChannels.Set(float64(n))
}

func (m *PrometheusProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *PrometheusProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Handler returns the exposition handler of p, or nil for a no-op provider.
func Handler(p Provider) http.Handler {
	if pp, ok := p.(*PrometheusProvider); ok {
		return pp.Handler()
	}
	return nil
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop returns a provider that records nothing.
func Noop() Provider { return noopMetrics{} }

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (noopMetrics) SetBotUp(_ string, _ bool)                        {}
func (noopMetrics) IncBotStart(_, _ string)                          {}
func (noopMetrics) IncForward(_ string)                              {}
func (noopMetrics) IncForwardFailure(_ string)                       {}
func (noopMetrics) SetMonitoredChannels(_ int)                       {}
func (noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
