package kubernetes

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
)

var (
	deployDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "sdm",
		Subsystem: "kubernetes",
		Name:      "deploy_duration_seconds",
		Help:      "Duration of deploys to the cluster, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{sdmmetrics.LabelSuccess})
)
