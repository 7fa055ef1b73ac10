// Package api is the interface the delivery machine daemon serves,
// whether in-process or over HTTP.
package api

import (
	"context"

	"github.com/looking-for-freedom/lff-sdm/pkg/job"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type Upstream interface {
	Ping(context.Context) error
	Version(context.Context) (string, error)
}

// Server defines what a daemon must do to serve a connecting sdmctl,
// or a webhook.
type Server interface {
	Upstream
	// NotifyPush queues the goals planned for a push, and returns the
	// ID of the job that will run them.
	NotifyPush(context.Context, push.Event) (job.ID, error)
	JobStatus(context.Context, job.ID) (job.Status, error)
	RecentJobs(context.Context) ([]job.ID, error)
}
