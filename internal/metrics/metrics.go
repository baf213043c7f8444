package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "celebration"

// Outcome labels for webhook requests.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the service collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	WebhookRequests   *prometheus.CounterVec
	Celebrations      *prometheus.CounterVec
	CelebrationTime   prometheus.Histogram
	DeviceBroadcasts  prometheus.Counter
	DeviceConnections prometheus.Gauge
}

// New registers every collector, plus Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by profile and outcome.",
		}, []string{"profile", "outcome"}),
		Celebrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "celebrations_total",
			Help:      "Celebration sequences by result.",
		}, []string{"result"}),
		CelebrationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "celebration_duration_seconds",
			Help:      "Wall time spent blinking the strip.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 7.5, 10},
		}),
		DeviceBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_messages_sent_total",
			Help:      "Messages written to device sockets.",
		}),
		DeviceConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connections",
			Help:      "Open device websocket connections.",
		}),
	}

	m.registry.MustRegister(
		m.WebhookRequests,
		m.Celebrations,
		m.CelebrationTime,
		m.DeviceBroadcasts,
		m.DeviceConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
