package machine

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
)

var (
	pushesReceived = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "sdm",
		Subsystem: "machine",
		Name:      "pushes_total",
		Help:      "Count of pushes dispatched, by whether any goals were planned for them.",
	}, []string{sdmmetrics.LabelMatched})

	goalSetDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "sdm",
		Subsystem: "machine",
		Name:      "goal_set_duration_seconds",
		Help:      "Duration of running all the goals planned for a push, in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{sdmmetrics.LabelGoalSet, sdmmetrics.LabelSuccess})
)
