package reactor

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_reactor_connections_accepted_total",
		Help: "Total connections accepted by the reactor's listen socket.",
	})
	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watt_reactor_connections_active",
		Help: "Connections currently tracked by the reactor.",
	})
	connectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_reactor_connections_rejected_total",
		Help: "Connections rejected because the worker queue was full.",
	})
	connectionsTimedOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watt_reactor_connections_timed_out_total",
		Help: "Connections closed by the idle-timer sweep.",
	})
)

// MustRegister registers the reactor's metrics against reg, panicking on
// a duplicate-registration error (a programming error, not a runtime one).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(connectionsAccepted, connectionsActive, connectionsRejected, connectionsTimedOut)
}
