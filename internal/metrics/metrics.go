package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	workflowPhases  *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	invoiceSkipped  prometheus.Counter
}

// New initialises a registry with the engine's collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_wallet_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_wallet_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	phases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_wallet_workflow_phase_total",
		Help: "Proposal workflow phase outcomes.",
	}, []string{"phase", "outcome"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_wallet_settlements_total",
		Help: "Wallet and batch settlement attempts by outcome.",
	}, []string{"kind", "outcome"})
	invoiceSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_wallet_invoice_skipped_total",
		Help: "Invoices that could not be generated after a successful settlement.",
	})
	registry.MustRegister(requests, duration, phases, settlements, invoiceSkipped)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		workflowPhases:  phases,
		settlements:     settlements,
		invoiceSkipped:  invoiceSkipped,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and duration per matched route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePhase counts a workflow phase outcome ("ok" or an error code).
func (m *Metrics) ObservePhase(phase, outcome string) {
	if m == nil {
		return
	}
	m.workflowPhases.WithLabelValues(phase, outcome).Inc()
}

// ObserveSettlement counts a settlement attempt.
func (m *Metrics) ObserveSettlement(kind, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind, outcome).Inc()
}

// ObserveInvoiceSkipped counts a swallowed invoice failure.
func (m *Metrics) ObserveInvoiceSkipped() {
	if m == nil {
		return
	}
	m.invoiceSkipped.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unknown"
}
