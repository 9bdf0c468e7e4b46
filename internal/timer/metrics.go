package timer

import "github.com/prometheus/client_golang/prometheus"

var (
	activeTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watt_timer_active_total",
		Help: "Number of idle-timeout slots currently registered.",
	})
	evictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_timer_evicted_total",
		Help: "Total connections evicted for idling past their deadline.",
	})
)

// MustRegister registers the timer list's collectors against reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(activeTotal, evictedTotal)
}
