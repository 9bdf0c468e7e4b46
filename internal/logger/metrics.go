package logger

import "github.com/prometheus/client_golang/prometheus"

var (
	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_logger_dropped_total",
		Help: "Log lines dropped due to ring memory exhaustion or producer/consumer races.",
	})
	buffersTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watt_logger_buffers_total",
		Help: "Current number of cell buffers in the logger ring.",
	})
	bytesPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_logger_bytes_persisted_total",
		Help: "Total bytes written to the log file by the consumer.",
	})
)

// MustRegister registers the logger's collectors with reg. Safe to call once
// per process; panics on duplicate registration like prometheus.MustRegister.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(droppedTotal, buffersTotal, bytesPersistedTotal)
}
