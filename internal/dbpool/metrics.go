package dbpool

import "github.com/prometheus/client_golang/prometheus"

var (
	leasesInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watt_dbpool_leases_in_use",
		Help: "Number of database handles currently leased out.",
	})
	acquireWaitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_dbpool_acquire_blocked_total",
		Help: "Number of Acquire calls that had to wait for a free handle.",
	})
)

// MustRegister registers the pool's collectors against reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(leasesInUse, acquireWaitTotal)
}
