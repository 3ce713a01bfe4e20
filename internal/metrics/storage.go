package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storageErrorsTotal, dbPoolStats) }

var (
	storageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_storage_errors_total",
			Help: "Storage operations that returned an error, by operation.",
		},
		[]string{"op"},
	)

	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopbot_db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)
)

func IncStorageError(op string) {
	storageErrorsTotal.WithLabelValues(op).Inc()
}

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}
