package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dday",
			Subsystem: "snapshot",
			Name:      "writes_total",
			Help:      "Snapshot sync attempts by operation and result.",
		},
		[]string{"op", "result"},
	)

	entries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dday",
			Subsystem: "snapshot",
			Name:      "entries",
			Help:      "Number of entries in the last successfully written snapshot.",
		},
	)
)
