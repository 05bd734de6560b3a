// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Votes               *prometheus.CounterVec
	BroadcastEvents     *prometheus.CounterVec
	BroadcastDeliveries *prometheus.CounterVec
	RoomSubscribers     prometheus.Gauge
	GeneratorCalls      *prometheus.CounterVec
	LedgerConflicts     prometheus.Counter
}

// New registers every collector on reg. A nil reg gives collectors that
// count but are never exported, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Votes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "versus_votes_total",
			Help: "Votes processed, by outcome",
		}, []string{"outcome"}),
		BroadcastEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "versus_broadcast_events_total",
			Help: "Room events published, by type",
		}, []string{"type"}),
		BroadcastDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "versus_broadcast_deliveries_total",
			Help: "Per-subscriber event deliveries, by result",
		}, []string{"result"}),
		RoomSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "versus_room_subscribers",
			Help: "Currently connected room subscribers",
		}),
		GeneratorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "versus_generator_calls_total",
			Help: "Text generator calls, by kind and result",
		}, []string{"kind", "result"}),
		LedgerConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "versus_ledger_conflicts_total",
			Help: "Battle update transactions retried after a write conflict",
		}),
	}
}

// NewNop returns unregistered collectors.
func NewNop() *Metrics {
	return New(nil)
}
