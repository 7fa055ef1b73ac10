package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/looking-for-freedom/lff-sdm/pkg/api"
	"github.com/looking-for-freedom/lff-sdm/pkg/job"
)

var ErrTimeout = errors.New("timeout")

// awaitJob polls for a job to have been completed, with exponential
// backoff, then prints how each goal went.
func awaitJob(ctx context.Context, out io.Writer, client api.Server, jobID job.ID, timeout time.Duration) error {
	var status job.Status
	err := backoff(100*time.Millisecond, 2, 50, timeout, func() (bool, error) {
		var err error
		status, err = client.JobStatus(ctx, jobID)
		if err != nil {
			return false, err
		}
		switch status.StatusString {
		case job.StatusQueued, job.StatusRunning:
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	printStatus(out, status)
	if status.StatusString == job.StatusFailed {
		return status
	}
	return nil
}

func printStatus(out io.Writer, status job.Status) {
	w := newTabwriter(out)
	fmt.Fprintf(w, "REPO\t%s\n", status.Result.Repo)
	fmt.Fprintf(w, "STATUS\t%s\n", status.StatusString)
	if status.Err != "" {
		fmt.Fprintf(w, "ERROR\t%s\n", status.Err)
	}
	w.Flush()
	if len(status.Result.Goals) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = newTabwriter(out)
	fmt.Fprintln(w, "GOAL\tSTATE\tDESCRIPTION")
	for _, g := range status.Result.Goals {
		fmt.Fprintf(w, "%s\t%s\t%s\n", g.Goal, g.State, g.Description)
	}
	w.Flush()
}

// backoff polls for f() to have been completed, with exponential backoff.
func backoff(initialDelay, factor, maxFactor, timeout time.Duration, f func() (bool, error)) error {
	maxDelay := initialDelay * maxFactor
	finish := time.Now().Add(timeout)
	for delay := initialDelay; time.Now().Before(finish); delay = min(delay*factor, maxDelay) {
		ok, err := f()
		if ok || err != nil {
			return err
		}
		// If we don't have time to try again, stop
		if time.Now().Add(delay).After(finish) {
			break
		}
		time.Sleep(delay)
	}
	return ErrTimeout
}

func min(t1, t2 time.Duration) time.Duration {
	if t1 < t2 {
		return t1
	}
	return t2
}
