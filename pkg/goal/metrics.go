package goal

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
)

var (
	// Builds (npm ci, compile, docker build) are the long pole, at
	// a few minutes; versioning and deploying take seconds.
	goalDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "sdm",
		Subsystem: "goal",
		Name:      "duration_seconds",
		Help:      "Duration of goal execution, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 240, 480, 900},
	}, []string{sdmmetrics.LabelGoal, sdmmetrics.LabelSuccess})
)
