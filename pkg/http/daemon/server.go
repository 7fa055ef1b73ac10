package daemon

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/google/go-github/v28/github"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/weaveworks/common/middleware"

	"github.com/looking-for-freedom/lff-sdm/pkg/api"
	transport "github.com/looking-for-freedom/lff-sdm/pkg/http"
	"github.com/looking-for-freedom/lff-sdm/pkg/job"
	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "sdm",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{sdmmetrics.LabelMethod, sdmmetrics.LabelRoute, "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// NotifyResponse is the body of the response to a push
// notification; there is no job if the push was ignored.
type NotifyResponse struct {
	Job job.ID `json:"job,omitempty"`
}

// An API server for the daemon
func NewRouter() *mux.Router {
	r := transport.NewAPIRouter()

	// We assume every request that doesn't match a route is a client
	// calling an old or hitherto unsupported API.
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})

	return r
}

// Options are for the parts of the API that are not just passed on to
// the api.Server.
type Options struct {
	// WebhookSecret is shared with GitHub to sign webhook payloads;
	// when empty, payloads are not checked
	WebhookSecret []byte
	// MaxWebhookPayload bounds the size of webhook bodies, in bytes;
	// zero means DefaultMaxWebhookPayload
	MaxWebhookPayload int64
	Logger            log.Logger
}

// DefaultMaxWebhookPayload is the most GitHub will send.
const DefaultMaxWebhookPayload = 25 << 20

func NewHandler(s api.Server, r *mux.Router, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	maxPayload := opts.MaxWebhookPayload
	if maxPayload <= 0 {
		maxPayload = DefaultMaxWebhookPayload
	}
	handle := HTTPServer{server: s, secret: opts.WebhookSecret, maxPayload: maxPayload, logger: logger}

	r.Get(transport.Ping).HandlerFunc(handle.Ping)
	r.Get(transport.Version).HandlerFunc(handle.Version)
	r.Get(transport.Notify).HandlerFunc(handle.Notify)
	r.Get(transport.GitHubWebhook).HandlerFunc(handle.GitHubWebhook)
	r.Get(transport.JobStatus).HandlerFunc(handle.JobStatus)
	r.Get(transport.RecentJobs).HandlerFunc(handle.RecentJobs)

	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}

type HTTPServer struct {
	server     api.Server
	secret     []byte
	maxPayload int64
	logger     log.Logger
}

func (s HTTPServer) Ping(w http.ResponseWriter, r *http.Request) {
	if err := s.server.Ping(r.Context()); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HTTPServer) Version(w http.ResponseWriter, r *http.Request) {
	version, err := s.server.Version(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, version)
}

func (s HTTPServer) Notify(w http.ResponseWriter, r *http.Request) {
	var e push.Event
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	s.notify(w, r, e)
}

func (s HTTPServer) notify(w http.ResponseWriter, r *http.Request, e push.Event) {
	id, err := s.server.NotifyPush(r.Context(), e)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponseWithStatus(w, r, http.StatusAccepted, NotifyResponse{Job: id})
}

// GitHubWebhook accepts push webhooks from GitHub. Other events are
// acknowledged and ignored, so that e.g. the ping GitHub sends when a
// webhook is created succeeds.
func (s HTTPServer) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, s.maxPayload))
	if err != nil {
		s.logger.Log("webhook", "github", "err", err)
		transport.WriteError(w, r, http.StatusRequestEntityTooLarge, errors.Wrap(err, "reading webhook payload"))
		return
	}
	payload, err := s.webhookPayload(r, body)
	if err != nil {
		s.logger.Log("webhook", "github", "err", err)
		transport.WriteError(w, r, http.StatusUnauthorized, transport.ErrorUnauthorized)
		return
	}

	eventType := github.WebHookType(r)
	if eventType != "push" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, errors.Wrap(err, "parsing push webhook"))
		return
	}
	e, ok := push.FromGitHub(event.(*github.PushEvent))
	if !ok {
		transport.JSONResponseWithStatus(w, r, http.StatusAccepted, NotifyResponse{})
		return
	}
	s.notify(w, r, e)
}

func (s HTTPServer) webhookPayload(r *http.Request, body []byte) ([]byte, error) {
	if len(s.secret) == 0 {
		return body, nil
	}
	r.Body = ioutil.NopCloser(bytes.NewReader(body))
	return github.ValidatePayload(r, s.secret)
}

func (s HTTPServer) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := job.ID(mux.Vars(r)["id"])
	status, err := s.server.JobStatus(r.Context(), id)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, status)
}

func (s HTTPServer) RecentJobs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.server.RecentJobs(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, ids)
}
