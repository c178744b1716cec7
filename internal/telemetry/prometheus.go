package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder exposes metrics on its own registry, served by Handler.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	cycleDuration  prometheus.Histogram
	nodesEvaluated prometheus.Counter
	nodesFailed    prometheus.Counter
	tierEvals      *prometheus.CounterVec
	anomalies      prometheus.Counter
	alerts         *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	readings       *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewPrometheusRecorder registers all collectors under the given namespace
// on a fresh registry. Go runtime and process collectors are included.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_cycle_duration_seconds",
			Help:      "Duration of one evaluation cycle over all active nodes",
			Buckets:   prometheus.DefBuckets,
		}),
		nodesEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_evaluated_total",
			Help:      "Nodes evaluated successfully",
		}),
		nodesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_failed_total",
			Help:      "Node evaluations that failed or were skipped",
		}),
		tierEvals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_evaluations_total",
			Help:      "Evaluations by resulting tier",
		}, []string{"tier"}),
		anomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Latest readings flagged as anomalous",
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert decisions by outcome",
		}, []string{"outcome"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Push deliveries by outcome",
		}, []string{"outcome"}),
		readings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Sensor readings by ingest result",
		}, []string{"result"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "endpoint", "status"}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveCycle(_ context.Context, d time.Duration, evaluated, failed int) {
	p.cycleDuration.Observe(d.Seconds())
	p.nodesEvaluated.Add(float64(evaluated))
	p.nodesFailed.Add(float64(failed))
}

func (p *PrometheusRecorder) RecordTier(_ context.Context, tier string) {
	p.tierEvals.WithLabelValues(tier).Inc()
}

func (p *PrometheusRecorder) RecordAnomaly(_ context.Context) {
	p.anomalies.Inc()
}

func (p *PrometheusRecorder) RecordAlert(_ context.Context, outcome string) {
	p.alerts.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) RecordDelivery(_ context.Context, outcome string) {
	p.deliveries.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) RecordIngest(_ context.Context, accepted, rejected int) {
	if accepted > 0 {
		p.readings.WithLabelValues("accepted").Add(float64(accepted))
	}
	if rejected > 0 {
		p.readings.WithLabelValues("rejected").Add(float64(rejected))
	}
}

func (p *PrometheusRecorder) RecordRequest(method, endpoint, status string, d time.Duration) {
	p.requests.WithLabelValues(method, endpoint, status).Inc()
	p.requestLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
