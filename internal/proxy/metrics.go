package proxy

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acttest"

// Request outcomes.
const (
	outcomeMocked    = "mocked"
	outcomeForwarded = "forwarded"
	outcomeError     = "error"
)

// Tunnel modes.
const (
	tunnelDirect   = "direct"
	tunnelRerouted = "rerouted"
	tunnelRejected = "rejected"
)

// Metrics are the collectors of one proxy instance. Primary and secondary
// proxies share metric names and are told apart by the "proxy" label.
type Metrics struct {
	// Requests counts intercepted HTTP requests by outcome.
	Requests *prometheus.CounterVec
	// Tunnels counts CONNECT requests by how they were handled.
	Tunnels *prometheus.CounterVec
	// ActiveConnections is the number of open sockets, tunnels included.
	ActiveConnections prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, role string) *Metrics {
	labels := prometheus.Labels{"proxy": role}
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "proxy_requests_total",
				Help:        "Total number of intercepted HTTP requests",
				ConstLabels: labels,
			},
			[]string{"outcome"}, // mocked, forwarded, error
		),
		Tunnels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "proxy_tunnels_total",
				Help:        "Total number of CONNECT requests",
				ConstLabels: labels,
			},
			[]string{"mode"}, // direct, rerouted, rejected
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "proxy_active_connections",
				Help:        "Number of currently open proxy connections",
				ConstLabels: labels,
			},
		),
	}
	m.Requests = register(reg, m.Requests)
	m.Tunnels = register(reg, m.Tunnels)
	m.ActiveConnections = register(reg, m.ActiveConnections)
	return m
}

// register adds c to reg, reusing the collector that is already registered
// under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
