// Package build runs a fixed sequence of external commands in a
// project, as the fulfillment of a goal. The sequence stops at the
// first command that fails; there are no retries.
package build

import (
	"context"
	"fmt"
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/process"
	"github.com/looking-for-freedom/lff-sdm/pkg/project"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

// ErrorPrefix starts the message of every outcome that comes from an
// error, rather than from a command exiting non-zero.
const ErrorPrefix = "Failed to execute goal: "

// Context is what one execution works with. It is assembled when the
// project has been acquired and is dropped when the outcome is made.
type Context struct {
	Dir  string
	Log  io.Writer
	Env  map[string]string
	Repo push.RepoRef
}

// Plan decides the commands to run in a project. It is consulted
// once, before any command runs.
type Plan func(p project.Project) ([]process.Command, error)

// Commands is a Plan that always gives the same commands.
func Commands(cmds ...process.Command) Plan {
	return func(project.Project) ([]process.Command, error) {
		return cmds, nil
	}
}

// Executor is the sequential process goal executor.
type Executor struct {
	Spawner process.Spawner
	Loader  project.Loader
	Plan    Plan
	// Logger is used when the invocation has no logger of its own
	Logger log.Logger
	// ErrorCode is the outcome code given when execution fails with an
	// error (as opposed to a command failing). Zero, the default,
	// reports such failures with a successful code, and only the
	// message says otherwise.
	ErrorCode int
}

// Execute is a goal.ExecuteGoal. It always returns exactly one
// outcome; errors are logged and folded into it.
func (e *Executor) Execute(ctx context.Context, inv goal.Invocation) goal.Outcome {
	var outcome goal.Outcome
	params := project.Params{
		Repo: inv.Push.Repo,
		Log:  inv.Log,
		Env:  inv.Env,
	}
	err := e.Loader.DoWithProject(ctx, params, func(p project.Project) error {
		var err error
		outcome, err = e.run(ctx, Context{
			Dir:  p.Dir(),
			Log:  inv.Log,
			Env:  inv.Env,
			Repo: p.ID(),
		}, p)
		return err
	})
	if err != nil {
		msg := ErrorPrefix + err.Error()
		level.Error(e.logger(inv)).Log("err", msg)
		return goal.Outcome{Code: e.ErrorCode, Message: msg}
	}
	return outcome
}

func (e *Executor) run(ctx context.Context, c Context, p project.Project) (goal.Outcome, error) {
	commands, err := e.Plan(p)
	if err != nil {
		return goal.Outcome{}, err
	}
	for _, cmd := range commands {
		res, err := e.Spawner.Spawn(ctx, cmd, process.Options{
			Dir: c.Dir,
			Env: c.Env,
			Log: c.Log,
		})
		if err != nil {
			return goal.Outcome{}, err
		}
		if res.Failed() {
			return goal.Outcome{Code: res.Code, Message: res.Message}, nil
		}
	}
	return goal.Success(fmt.Sprintf("Built %s/%s ", c.Repo.Owner, c.Repo.Repo)), nil
}

func (e *Executor) logger(inv goal.Invocation) log.Logger {
	switch {
	case inv.Logger != nil:
		return inv.Logger
	case e.Logger != nil:
		return e.Logger
	default:
		return log.NewNopLogger()
	}
}
