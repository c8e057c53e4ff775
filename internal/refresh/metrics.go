package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dday",
			Subsystem: "refresh",
			Name:      "ticks_total",
			Help:      "Refresh ticks by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	tickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dday",
			Subsystem: "refresh",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one refresh tick.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)
)
