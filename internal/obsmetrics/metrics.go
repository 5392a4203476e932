// Package obsmetrics exposes the hub's Prometheus metrics, scoped
// down from the teacher's observability.Metrics pattern to the
// concerns this router actually has: hub/driver message flow, bus
// lag, and connected WebSocket clients.
package obsmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/asgard/mavhub/internal/mavlink"
)

// Metrics holds every Prometheus metric the hub registers.
type Metrics struct {
	MessagesTotal  *prometheus.CounterVec
	BytesTotal     *prometheus.CounterVec
	ActiveDrivers  prometheus.Gauge
	BusLagEvents   prometheus.Counter
	WebSocketConns prometheus.Gauge
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Get returns the process-wide Metrics instance, registering it with
// the default Prometheus registry on first use.
func Get() *Metrics {
	globalOnce.Do(func() {
		global = newMetrics()
	})
	return global
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mavhub",
			Subsystem: "bus",
			Name:      "messages_total",
			Help:      "Total MAVLink messages observed, labeled by driver and direction.",
		},
		[]string{"driver", "direction"},
	)

	m.BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mavhub",
			Subsystem: "bus",
			Name:      "bytes_total",
			Help:      "Total MAVLink bytes observed, labeled by driver and direction.",
		},
		[]string{"driver", "direction"},
	)

	m.ActiveDrivers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mavhub",
			Subsystem: "hub",
			Name:      "active_drivers",
			Help:      "Number of drivers currently registered with the hub.",
		},
	)

	m.BusLagEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mavhub",
			Subsystem: "bus",
			Name:      "lag_events_total",
			Help:      "Number of times a subscriber fell behind and had messages dropped.",
		},
	)

	m.WebSocketConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mavhub",
			Subsystem: "rest",
			Name:      "websocket_connections",
			Help:      "Number of currently connected MAVLink WebSocket clients.",
		},
	)

	return m
}

// Observe records msg against the messages/bytes counters for driver
// in the given direction ("input" or "output"). Called from each
// driver's receive/send task alongside its local stats.Counter update.
func (m *Metrics) Observe(driver, direction string, msg *mavlink.Protocol) {
	m.MessagesTotal.WithLabelValues(driver, direction).Inc()
	m.BytesTotal.WithLabelValues(driver, direction).Add(float64(len(msg.RawBytes())))
}
