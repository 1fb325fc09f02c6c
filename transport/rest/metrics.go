// Package rest contains the HTTP producer used to deliver evaluation payloads
// and a Prometheus implementation of transport.Metrics. Metric names are
// derived from the provided service name. Labels for each metric:
//   - requests_sent_total              {endpoint, status}
//   - request_publish_duration_seconds {endpoint}
//   - forwards_total                   {format, outcome}
//   - active_producers                 no labels
package rest

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus implementation of transport.Metrics.
type Metrics struct {
	requestsSent    *prometheus.CounterVec
	publishTime     *prometheus.HistogramVec
	forwards        *prometheus.CounterVec
	activeProducers prometheus.Gauge
}

// NewMetrics registers the transport collectors on reg. A nil reg means the
// default Prometheus registerer.
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	if serviceName == "" {
		serviceName = "evalforward"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		requestsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_requests_sent_total", serviceName),
				Help: "Total number of requests sent to the evaluation backend",
			},
			// status label is the HTTP status code or "error"
			[]string{"endpoint", "status"},
		),
		publishTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_request_publish_duration_seconds", serviceName),
				Help:    "Time spent delivering a request to the evaluation backend",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		forwards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_forwards_total", serviceName),
				Help: "Total number of forward operations by input format and outcome",
			},
			[]string{"format", "outcome"},
		),
		activeProducers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: fmt.Sprintf("%s_active_producers", serviceName),
				Help: "Number of open producers",
			},
		),
	}
}

func (m *Metrics) IncRequestsSent(endpoint string, status string) {
	m.requestsSent.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) RecordPublishTime(endpoint string, duration time.Duration) {
	m.publishTime.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Metrics) IncForwards(format string, outcome string) {
	m.forwards.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) SetActiveProducers(count int) {
	m.activeProducers.Set(float64(count))
}
