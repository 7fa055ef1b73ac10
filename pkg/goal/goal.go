// Package goal has the goals of the delivery pipeline, the sets they
// are planned in, and the runner that executes a set for a push.
package goal

import (
	"context"

	"github.com/go-kit/kit/log"

	"github.com/looking-for-freedom/lff-sdm/pkg/progress"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type Environment string

const (
	IndependentOfEnvironment Environment = "independent"
	StagingEnvironment       Environment = "staging"
	ProductionEnvironment    Environment = "production"
)

// Goal is a named unit of delivery work, e.g., building or deploying.
// The descriptions are what is shown while the goal is in each state.
type Goal struct {
	UniqueName           string
	DisplayName          string
	WorkingDescription   string
	CompletedDescription string
	FailedDescription    string
	Environment          Environment
	// Isolated goals need a project of their own to work in
	Isolated bool
}

func (g Goal) String() string {
	if g.DisplayName != "" {
		return g.DisplayName
	}
	return g.UniqueName
}

// Outcome is the result of executing a goal. A zero Code is success;
// anything else is failure.
type Outcome struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (o Outcome) Failed() bool {
	return o.Code != 0
}

func Success(message string) Outcome {
	return Outcome{Code: 0, Message: message}
}

// Invocation carries everything a goal is executed with. One is made
// for each goal, each time it is executed.
type Invocation struct {
	Goal Goal
	Push push.Event
	// Log is the progress log for this goal; operators see what is
	// written here
	Log progress.Log
	// Env is the base environment for anything the goal spawns
	Env map[string]string
	// Logger is for the daemon's own logs
	Logger log.Logger
}

// ExecuteGoal does the work of a goal. It always produces an Outcome;
// how errors are reported is up to the implementation.
type ExecuteGoal func(ctx context.Context, inv Invocation) Outcome

type Fulfillment struct {
	Name    string
	Execute ExecuteGoal
}

// Planned is a goal with its fulfillment, and the goals it must
// come after.
type Planned struct {
	Goal        Goal
	Fulfillment Fulfillment
	Deps        []string
}

func Plan(g Goal, f Fulfillment) Planned {
	return Planned{Goal: g, Fulfillment: f}
}

// After returns a copy of the planned goal that also depends on the
// goals given.
func (p Planned) After(goals ...Goal) Planned {
	deps := append([]string(nil), p.Deps...)
	for _, g := range goals {
		deps = append(deps, g.UniqueName)
	}
	p.Deps = deps
	return p
}
