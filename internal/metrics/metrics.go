// Package metrics records session lifecycle counters in the default
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wslink",
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by trigger and result (opening|deferred|busy).",
		},
		[]string{"trigger", "result"},
	)
	opens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wslink",
			Subsystem: "session",
			Name:      "opens_total",
			Help:      "Sessions that completed the transport open.",
		},
	)
	closes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wslink",
			Subsystem: "session",
			Name:      "closes_total",
			Help:      "Session closures by code. Locally initiated closes are not counted.",
		},
		[]string{"code"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wslink",
			Subsystem: "dispatch",
			Name:      "frames_total",
			Help:      "Inbound frames by dispatch outcome.",
		},
		[]string{"outcome"},
	)
	closureActions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wslink",
			Subsystem: "closure",
			Name:      "actions_total",
			Help:      "Host actions invoked by the closure policy.",
		},
	)
	foregroundResumes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wslink",
			Subsystem: "foreground",
			Name:      "resumes_total",
			Help:      "Foreground transitions by result (reconnect|deferred|error).",
		},
		[]string{"result"},
	)
)

// Register adds the collectors to the default registry. It is idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, opens, closes, frames, closureActions, foregroundResumes)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

func RecordConnectAttempt(trigger, result string) {
	Register()
	connectAttempts.WithLabelValues(trigger, result).Inc()
}

func RecordOpen() {
	Register()
	opens.Inc()
}

func RecordClose(code int) {
	Register()
	closes.WithLabelValues(strconv.Itoa(code)).Inc()
}

func RecordFrame(outcome string) {
	Register()
	frames.WithLabelValues(outcome).Inc()
}

func RecordClosureActions(n int) {
	Register()
	closureActions.Add(float64(n))
}

func RecordForegroundResume(result string) {
	Register()
	foregroundResumes.WithLabelValues(result).Inc()
}
