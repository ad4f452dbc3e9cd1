// Package metrics provides Prometheus instrumentation for the bot. It
// exposes counters for event throughput, lock violations, punishments, and
// game rounds, plus a store-error counter for observing fail-open paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts inbound events processed by the pipeline.
	EventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupbot_events_total",
		Help: "Total number of inbound events processed",
	})

	// ViolationsTotal counts lock violations, labeled by feature.
	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbot_lock_violations_total",
		Help: "Total number of lock violations detected",
	}, []string{"feature"})

	// PunishmentsTotal counts punishments applied, labeled by kind.
	PunishmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbot_punishments_total",
		Help: "Total number of punishments applied",
	}, []string{"kind"}) // kind = "delete", "warn", "kick", "mute", "ban"

	// RoundsTotal counts game rounds, labeled by kind and outcome.
	RoundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbot_game_rounds_total",
		Help: "Total number of game rounds started and won",
	}, []string{"kind", "outcome"}) // outcome = "started", "won"

	// HandlerErrors counts swallowed action errors, labeled by matcher name.
	HandlerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbot_handler_errors_total",
		Help: "Total number of handler action errors (logged and swallowed)",
	}, []string{"handler"})

	// StoreErrors counts ephemeral-store failures observed on fail-open
	// enforcement paths.
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbot_store_errors_total",
		Help: "Total number of ephemeral store errors",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		ViolationsTotal,
		PunishmentsTotal,
		RoundsTotal,
		HandlerErrors,
		StoreErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
