package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		updatesTotal,
		routesTotal,
		updateDuration,
		sendFailuresTotal,
	)
}

// Update results
const (
	ResultOK          = "ok"
	ResultMalformed   = "malformed"
	ResultUnsupported = "unsupported"
	ResultDuplicate   = "duplicate"
	ResultError       = "error"
)

var (
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_updates_total",
			Help: "Updates received, by kind and processing result.",
		},
		[]string{"kind", "result"},
	)

	routesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_routes_total",
			Help: "Dispatched updates, by router stage and matched route.",
		},
		[]string{"stage", "route"},
	)

	updateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopbot_update_duration_seconds",
			Help:    "Time spent handling one update.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	sendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_send_failures_total",
			Help: "Outbound Bot API calls that failed, by method.",
		},
		[]string{"method"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncUpdate(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	updatesTotal.WithLabelValues(norm(kind), result).Inc()
}

func IncRoute(stage, route string) {
	routesTotal.WithLabelValues(stage, route).Inc()
}

func ObserveUpdate(d time.Duration) {
	updateDuration.Observe(d.Seconds())
}

func IncSendFailure(method string) {
	sendFailuresTotal.WithLabelValues(method).Inc()
}
