package widget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dday",
			Subsystem: "widget",
			Name:      "reloads_total",
			Help:      "Timeline reload requests by scope (a widget kind or \"all\").",
		},
		[]string{"scope"},
	)

	timelineBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dday",
			Subsystem: "widget",
			Name:      "timeline_builds_total",
			Help:      "Timelines rebuilt from the shared snapshot.",
		},
		[]string{"kind"},
	)
)
