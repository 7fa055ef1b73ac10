package daemon

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/looking-for-freedom/lff-sdm/pkg/api"
	sdmerr "github.com/looking-for-freedom/lff-sdm/pkg/errors"
	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/job"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

// Dispatcher runs the goals planned for a push.
type Dispatcher interface {
	Dispatch(ctx context.Context, e push.Event) ([]goal.Status, bool, error)
}

// Daemon queues the pushes it is notified of, and runs the goals for
// each in turn.
type Daemon struct {
	V              string
	Machine        Dispatcher
	Jobs           *job.Queue
	JobStatusCache *job.StatusCache
	// GoalTimeout bounds the time taken by all the goals for one push;
	// zero means no bound
	GoalTimeout time.Duration
	Logger      log.Logger
}

// Invariant.
var _ api.Server = &Daemon{}

func (d *Daemon) Ping(ctx context.Context) error {
	return nil
}

func (d *Daemon) Version(ctx context.Context) (string, error) {
	return d.V, nil
}

func (d *Daemon) NotifyPush(ctx context.Context, e push.Event) (job.ID, error) {
	if err := e.Validate(); err != nil {
		return "", sdmerr.BadPush(err)
	}
	return d.queueJob(e), nil
}

// JobStatus - Ask the daemon how far it's got with the goals for a
// push; is the job queued? running? done?
func (d *Daemon) JobStatus(ctx context.Context, id job.ID) (job.Status, error) {
	status, ok := d.JobStatusCache.Status(id)
	if !ok {
		return job.Status{}, sdmerr.UnknownJob(string(id))
	}
	return status, nil
}

func (d *Daemon) RecentJobs(ctx context.Context) ([]job.ID, error) {
	return d.JobStatusCache.Recent(), nil
}

// queueJob queues the goals for a push to be run.
func (d *Daemon) queueJob(e push.Event) job.ID {
	id := job.NewID()
	enqueuedAt := time.Now()
	// set before enqueuing, so a fast worker's status isn't overwritten
	d.JobStatusCache.SetStatus(id, job.Status{
		StatusString: job.StatusQueued,
		Result:       job.Result{Repo: e.Repo.String()},
	})
	d.Jobs.Enqueue(&job.Job{
		ID: id,
		Do: func(logger log.Logger) error {
			queueDuration.Observe(time.Since(enqueuedAt).Seconds())
			return d.executeJob(id, e, logger)
		},
	})
	queueLength.Set(float64(d.Jobs.Len()))
	return id
}

// executeJob dispatches a push, keeping track of its status.
func (d *Daemon) executeJob(id job.ID, e push.Event, logger log.Logger) error {
	ctx := context.Background()
	if d.GoalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.GoalTimeout)
		defer cancel()
	}
	result := job.Result{Repo: e.Repo.String()}
	d.JobStatusCache.SetStatus(id, job.Status{StatusString: job.StatusRunning, Result: result})

	statuses, matched, err := d.Machine.Dispatch(ctx, e)
	if err != nil {
		d.JobStatusCache.SetStatus(id, job.Status{StatusString: job.StatusFailed, Err: err.Error(), Result: result})
		return err
	}
	if !matched {
		logger.Log("repo", e.Repo.String(), "goals", "none")
		d.JobStatusCache.SetStatus(id, job.Status{StatusString: job.StatusIgnored, Result: result})
		return nil
	}

	result.Goals = statuses
	if failed, ok := firstFailure(statuses); ok {
		err := errors.Errorf("goal %s did not succeed: %s", failed.Goal, failed.Description)
		d.JobStatusCache.SetStatus(id, job.Status{StatusString: job.StatusFailed, Err: err.Error(), Result: result})
		return err
	}
	d.JobStatusCache.SetStatus(id, job.Status{StatusString: job.StatusSucceeded, Result: result})
	return nil
}

func firstFailure(statuses []goal.Status) (goal.Status, bool) {
	for _, s := range statuses {
		if s.State != goal.StateSuccess {
			return s, true
		}
	}
	return goal.Status{}, false
}
