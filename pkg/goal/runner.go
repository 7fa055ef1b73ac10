package goal

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"

	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
	"github.com/looking-for-freedom/lff-sdm/pkg/progress"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type State string

const (
	StatePlanned   State = "planned"
	StateInProcess State = "in_process"
	StateSuccess   State = "success"
	StateFailure   State = "failure"
	StateSkipped   State = "skipped"
)

// Status is where a goal got to in one run of a goal set.
type Status struct {
	Goal        string        `json:"goal"`
	State       State         `json:"state"`
	Description string        `json:"description"`
	Outcome     *Outcome      `json:"outcome,omitempty"`
	Log         string        `json:"log,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Runner executes the goals of a set one at a time, in dependency
// order. A goal is skipped if any goal it comes after did not succeed.
// There are no retries.
type Runner struct {
	Logger log.Logger
	// Env is the base environment handed to every goal
	Env map[string]string
	// NewLog makes the progress log for a goal; by default, output is
	// kept in memory and also forwarded to Logger
	NewLog func(Goal, push.Event) progress.Log
}

func (r Runner) Run(ctx context.Context, set Set, e push.Event) []Status {
	logger := r.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "goalset", set.Name, "repo", e.Repo.String())

	goals := set.Order()
	statuses := make([]Status, len(goals))
	state := map[string]State{}
	for i, p := range goals {
		statuses[i] = Status{Goal: p.Goal.UniqueName, State: StatePlanned, Description: p.Goal.String()}
	}

	for i, p := range goals {
		status := &statuses[i]
		if blocker, ok := blocked(p, state); ok {
			status.State = StateSkipped
			status.Description = p.Goal.String() + " skipped: " + blocker + " did not succeed"
			state[p.Goal.UniqueName] = StateSkipped
			logger.Log("goal", p.Goal.UniqueName, "state", StateSkipped, "blocked-by", blocker)
			continue
		}
		if err := ctx.Err(); err != nil {
			status.State = StateSkipped
			status.Description = p.Goal.String() + " skipped: " + err.Error()
			state[p.Goal.UniqueName] = StateSkipped
			continue
		}

		status.State = StateInProcess
		status.Description = describe(p.Goal.WorkingDescription, p.Goal)
		glogger := log.With(logger, "goal", p.Goal.UniqueName)
		plog := r.newLog(p.Goal, e, glogger)

		started := time.Now()
		outcome := p.Fulfillment.Execute(ctx, Invocation{
			Goal:   p.Goal,
			Push:   e,
			Log:    plog,
			Env:    r.Env,
			Logger: glogger,
		})
		status.Duration = time.Since(started)
		if err := plog.Close(); err != nil {
			glogger.Log("err", err)
		}

		status.Outcome = &outcome
		status.Log = plog.String()
		if outcome.Failed() {
			status.State = StateFailure
			status.Description = describe(p.Goal.FailedDescription, p.Goal)
		} else {
			status.State = StateSuccess
			status.Description = describe(p.Goal.CompletedDescription, p.Goal)
		}
		state[p.Goal.UniqueName] = status.State
		goalDuration.With(
			sdmmetrics.LabelGoal, p.Goal.UniqueName,
			sdmmetrics.LabelSuccess, strconv.FormatBool(!outcome.Failed()),
		).Observe(status.Duration.Seconds())
		glogger.Log("state", status.State, "code", outcome.Code, "message", outcome.Message, "took", status.Duration)
	}
	return statuses
}

func (r Runner) newLog(g Goal, e push.Event, logger log.Logger) progress.Log {
	if r.NewLog != nil {
		return r.NewLog(g, e)
	}
	return progress.Tee(progress.NewBuffer(), progress.NewLoggerLog(logger))
}

func blocked(p Planned, state map[string]State) (string, bool) {
	for _, dep := range p.Deps {
		if state[dep] != StateSuccess {
			return dep, true
		}
	}
	return "", false
}

func describe(desc string, g Goal) string {
	if desc != "" {
		return desc
	}
	return g.String()
}

// Succeeded reports whether every goal in a run succeeded.
func Succeeded(statuses []Status) bool {
	for _, s := range statuses {
		if s.State != StateSuccess {
			return false
		}
	}
	return true
}
