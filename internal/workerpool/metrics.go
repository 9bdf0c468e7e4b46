package workerpool

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watt_worker_queue_depth",
		Help: "Number of tasks currently waiting in the worker pool's queue.",
	})
	busyTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watt_worker_busy_total",
		Help: "Number of workers currently executing a task.",
	})
	rejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_worker_rejected_total",
		Help: "Tasks rejected because the queue was at capacity.",
	})
)

// MustRegister registers the worker pool's collectors against reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(queueDepth, busyTotal, rejectedTotal)
}
