package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type hubMetrics struct {
	transitions    *prometheus.CounterVec
	operations     *prometheus.CounterVec
	busyRejections prometheus.Counter
	inFlight       prometheus.Gauge
}

// newHubMetrics registers the hub collectors with reg. A nil reg leaves them unregistered.
func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	factory := promauto.With(reg)
	return &hubMetrics{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniagent_hub_transitions_total",
				Help: "Context transitions taken by the hub state machine",
			},
			[]string{"from", "to"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniagent_hub_operations_total",
				Help: "Hub operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		busyRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "omniagent_hub_busy_rejections_total",
			Help: "Operations rejected because a call was in flight",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "omniagent_hub_in_flight",
			Help: "1 while a planning or dispatch call is running",
		}),
	}
}
