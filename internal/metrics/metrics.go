// Package metrics экспортирует телеметрию клиента и сервера в Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/canvassync/internal/reconcile"
	"github.com/iudanet/canvassync/internal/transport"
	"github.com/iudanet/canvassync/internal/verify"
)

const namespace = "canvassync"

var latencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	_ transport.Observer = (*Client)(nil)
	_ verify.Observer    = (*Client)(nil)
	_ reconcile.Observer = (*Client)(nil)
)

// Client метрики клиентского ядра согласования
type Client struct {
	deliveries           *prometheus.CounterVec
	deliveryDuration     *prometheus.HistogramVec
	verifications        *prometheus.CounterVec
	verificationDuration prometheus.Histogram
	outcomes             *prometheus.CounterVec
	resolutions          *prometheus.CounterVec
	reconcileDuration    prometheus.Histogram
	unverified           prometheus.Counter
}

// NewClient регистрирует метрики клиента в reg
func NewClient(reg prometheus.Registerer) *Client {
	f := promauto.With(reg)
	return &Client{
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Operations confirmed by the server, by channel",
		}, []string{"method", "fallback"}),
		deliveryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time from send to server confirmation",
			Buckets:   latencyBuckets,
		}, []string{"method"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verification runs for unconfirmed operations, by method",
		}, []string{"method"}),
		verificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_duration_seconds",
			Help:      "Duration of verification runs",
			Buckets:   latencyBuckets,
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_outcomes_total",
			Help:      "Final outcomes of user intents",
		}, []string{"outcome"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_resolutions_total",
			Help:      "Conflicts resolved, by conflict type and strategy",
		}, []string{"type", "strategy"}),
		reconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time from intent to final outcome",
			Buckets:   latencyBuckets,
		}),
		unverified: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_unverified_total",
			Help:      "Outcomes accepted from a reconstructed local state",
		}),
	}
}

// ObserveDelivery реализует transport.Observer
func (c *Client) ObserveDelivery(method transport.Method, fellBack bool, elapsed time.Duration) {
	c.deliveries.WithLabelValues(string(method), strconv.FormatBool(fellBack)).Inc()
	c.deliveryDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

// ObserveVerification реализует verify.Observer
func (c *Client) ObserveVerification(method verify.Method, elapsed time.Duration) {
	c.verifications.WithLabelValues(string(method)).Inc()
	c.verificationDuration.Observe(elapsed.Seconds())
}

// ObserveReconcile реализует reconcile.Observer
func (c *Client) ObserveReconcile(res reconcile.Result) {
	c.outcomes.WithLabelValues(res.Outcome()).Inc()
	c.reconcileDuration.Observe(res.Elapsed.Seconds())
	if res.Conflict != nil {
		c.resolutions.WithLabelValues(string(res.Conflict.Type), string(res.Resolution)).Inc()
	}
	if res.Unverified {
		c.unverified.Inc()
	}
}

// Server метрики эталонного сервера
type Server struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	connections prometheus.Gauge
	mutations   *prometheus.CounterVec
	broadcasts  prometheus.Counter
}

// NewServer регистрирует метрики сервера в reg
func NewServer(reg prometheus.Registerer) *Server {
	f := promauto.With(reg)
	return &Server{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code",
		}, []string{"method", "route", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route",
			Buckets:   latencyBuckets,
		}, []string{"route"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "stream_connections",
			Help:      "Open event stream connections",
		}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "object_mutations_total",
			Help:      "Object mutations applied, by type and result",
		}, []string{"type", "result"}),
		broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "broadcasts_total",
			Help:      "Events fanned out to canvas participants",
		}),
	}
}

// ObserveRequest учитывает HTTP запрос
func (s *Server) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	s.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	s.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// StreamOpened учитывает открытое соединение потока
func (s *Server) StreamOpened() { s.connections.Inc() }

// StreamClosed учитывает закрытое соединение потока
func (s *Server) StreamClosed() { s.connections.Dec() }

// ObserveMutation учитывает мутацию объекта
func (s *Server) ObserveMutation(updateType, result string) {
	s.mutations.WithLabelValues(updateType, result).Inc()
}

// ObserveBroadcast учитывает рассылку события
func (s *Server) ObserveBroadcast(recipients int) {
	s.broadcasts.Add(float64(recipients))
}

// NewRegistry реестр со стандартными коллекторами процесса и рантайма
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler отдает метрики реестра в текстовом формате
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
