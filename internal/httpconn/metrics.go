package httpconn

import "github.com/prometheus/client_golang/prometheus"

var activeConnsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "watt_httpconn_active_total",
	Help: "Number of HTTP connections currently open.",
})

// MustRegister registers the connection-object collectors against reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(activeConnsTotal)
}
