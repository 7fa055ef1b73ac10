package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdmerr "github.com/looking-for-freedom/lff-sdm/pkg/errors"
	transport "github.com/looking-for-freedom/lff-sdm/pkg/http"
	"github.com/looking-for-freedom/lff-sdm/pkg/http/daemon"
	"github.com/looking-for-freedom/lff-sdm/pkg/job"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type server struct {
	notified []push.Event
}

func (s *server) Ping(context.Context) error { return nil }

func (s *server) Version(context.Context) (string, error) { return "1.0.0", nil }

func (s *server) NotifyPush(ctx context.Context, e push.Event) (job.ID, error) {
	if err := e.Validate(); err != nil {
		return "", sdmerr.BadPush(err)
	}
	s.notified = append(s.notified, e)
	return "abc", nil
}

func (s *server) JobStatus(ctx context.Context, id job.ID) (job.Status, error) {
	if id == "abc" {
		return job.Status{StatusString: job.StatusRunning}, nil
	}
	return job.Status{}, sdmerr.UnknownJob(string(id))
}

func (s *server) RecentJobs(context.Context) ([]job.ID, error) {
	return []job.ID{"abc"}, nil
}

func setup(t *testing.T) (*Client, *server) {
	s := &server{}
	ts := httptest.NewServer(daemon.NewHandler(s, daemon.NewRouter(), daemon.Options{}))
	t.Cleanup(ts.Close)
	return New(http.DefaultClient, transport.NewAPIRouter(), ts.URL), s
}

func TestClient_RoundTrip(t *testing.T) {
	c, s := setup(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)

	id, err := c.NotifyPush(ctx, push.Event{Repo: push.RepoRef{URL: "https://github.com/looking-for-freedom/lff-sdm.git"}})
	require.NoError(t, err)
	assert.Equal(t, job.ID("abc"), id)
	require.Len(t, s.notified, 1)

	status, err := c.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, status.StatusString)

	recent, err := c.RecentJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []job.ID{"abc"}, recent)
}

func TestClient_Errors(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	_, err := c.JobStatus(ctx, "nope")
	require.Error(t, err)
	assert.True(t, sdmerr.IsMissing(err), "%#v", err)

	_, err = c.NotifyPush(ctx, push.Event{})
	require.Error(t, err)
	assert.True(t, sdmerr.IsUser(err))
	assert.Contains(t, err.(*sdmerr.Error).Help, "could not be understood")
}
