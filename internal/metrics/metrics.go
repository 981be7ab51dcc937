package metrics

import (
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"strconv"
	"time"
)

// Registry owns every collector of the service. It is not the global
// registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	UpstreamCalls   *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
	OrdersCreated   *prometheus.CounterVec
	StatusChanges   *prometheus.CounterVec
	EventsHandled   *prometheus.CounterVec
}

func New(service string) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "upstream_calls_total",
			Help:      "Calls to the cart and catalog services by outcome.",
		}, []string{"source", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "upstream_call_duration_ms",
			Help:      "Latency of single upstream attempts in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 3000},
		}, []string{"source"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "orders_created_total",
			Help:      "Orders persisted, by currency.",
		}, []string{"currency"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "order_status_changes_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to"}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "events_handled_total",
			Help:      "Consumed events by type and result.",
		}, []string{"event_type", "result"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Requests, r.LatencyMS, r.UpstreamCalls, r.UpstreamLatency,
		r.OrdersCreated, r.StatusChanges, r.EventsHandled,
	)
	return r
}

var _ orders.Metrics = (*Registry)(nil)

func (r *Registry) OrderCreated(c orders.Currency) {
	r.OrdersCreated.WithLabelValues(string(c)).Inc()
}

func (r *Registry) StatusChanged(from, to orders.Status) {
	r.StatusChanges.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveUpstream records one attempt against a peer service.
func (r *Registry) ObserveUpstream(source, outcome string, elapsed time.Duration) {
	r.UpstreamCalls.WithLabelValues(source, outcome).Inc()
	r.UpstreamLatency.WithLabelValues(source).Observe(float64(elapsed.Milliseconds()))
}

func (r *Registry) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	r.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
}

func (r *Registry) EventHandled(eventType, result string) {
	r.EventsHandled.WithLabelValues(eventType, result).Inc()
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
