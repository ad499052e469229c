// Package metrics holds the prometheus collectors for the leaderboard API
// and the Telegram front end.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clicky"

// Submission results.
const (
	SubmitCreated = "created"
	SubmitUpdated = "updated"
	SubmitInvalid = "invalid"
	SubmitError   = "error"
)

// Metrics is a set of collectors registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	resets          *prometheus.CounterVec
	rateLimited     prometheus.Counter
	clicks          *prometheus.CounterVec
	unlocks         *prometheus.CounterVec
	syncOutcomes    *prometheus.CounterVec
	activeGames     prometheus.Gauge
	botUpdateErrors prometheus.Counter
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "submissions_total",
			Help:      "Score submissions by result.",
		}, []string{"result"}),
		resets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "resets_total",
			Help:      "Leaderboard resets by outcome.",
		}, []string{"outcome"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}),
		clicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "clicks_total",
			Help:      "Counted clicks by button.",
		}, []string{"button"}),
		unlocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "unlocks_total",
			Help:      "Feature unlocks by feature.",
		}, []string{"feature"}),
		syncOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "sync_total",
			Help:      "Leaderboard synchronisation outcomes by status.",
		}, []string{"status"}),
		activeGames: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "active_sessions",
			Help:      "Player sessions loaded in memory.",
		}),
		botUpdateErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "update_errors_total",
			Help:      "Telegram updates whose handler returned an error or panicked.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Submission counts a score submission with one of the Submit* results.
func (m *Metrics) Submission(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

// Reset counts a leaderboard reset.
func (m *Metrics) Reset(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.resets.WithLabelValues(outcome).Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// Click counts a click on button ("single", "left" or "right").
func (m *Metrics) Click(button string) {
	m.clicks.WithLabelValues(button).Inc()
}

// Unlock counts a feature unlock.
func (m *Metrics) Unlock(feature string) {
	m.unlocks.WithLabelValues(feature).Inc()
}

// Sync counts a leaderboard synchronisation outcome.
func (m *Metrics) Sync(status string) {
	m.syncOutcomes.WithLabelValues(status).Inc()
}

// SetActiveGames sets the number of loaded player sessions.
func (m *Metrics) SetActiveGames(n int) {
	m.activeGames.Set(float64(n))
}

// BotUpdateError counts a failed Telegram update.
func (m *Metrics) BotUpdateError() {
	m.botUpdateErrors.Inc()
}
