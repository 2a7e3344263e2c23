// Package metrics holds the Prometheus collectors of the server. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seqsubmit"

type Metrics struct {
	samplesSubmitted    prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	slotConflicts       prometheus.Counter
	usersRegistered     prometheus.Counter
	resultsProcessed    *prometheus.CounterVec
	emailFailures       prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		samplesSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "samples_submitted_total",
			Help: "Samples accepted and assigned a plate slot.",
		}),
		submissionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "submissions_rejected_total",
			Help: "Sample submissions refused, by reason.",
		}, []string{"reason"}),
		slotConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slot_conflicts_total",
			Help: "Allocations that lost a primary key race.",
		}),
		usersRegistered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "users_registered_total",
			Help: "New user accounts.",
		}),
		resultsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "results_processed_total",
			Help: "Result uploads, by outcome.",
		}, []string{"outcome"}),
		emailFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "email_failures_total",
			Help: "Notification emails that could not be sent.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) SampleSubmitted() {
	if m != nil {
		m.samplesSubmitted.Inc()
	}
}

func (m *Metrics) SubmissionRejected(reason string) {
	if m != nil {
		m.submissionsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SlotConflict() {
	if m != nil {
		m.slotConflicts.Inc()
	}
}

func (m *Metrics) UserRegistered() {
	if m != nil {
		m.usersRegistered.Inc()
	}
}

func (m *Metrics) ResultProcessed(outcome string) {
	if m != nil {
		m.resultsProcessed.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) EmailFailed() {
	if m != nil {
		m.emailFailures.Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
