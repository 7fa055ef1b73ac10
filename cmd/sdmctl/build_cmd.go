package main

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"

	"github.com/looking-for-freedom/lff-sdm/pkg/build"
	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	"github.com/looking-for-freedom/lff-sdm/pkg/machine"
	"github.com/looking-for-freedom/lff-sdm/pkg/process"
	"github.com/looking-for-freedom/lff-sdm/pkg/progress"
	"github.com/looking-for-freedom/lff-sdm/pkg/project"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type buildOpts struct {
	*rootOpts
	dir     string
	spawner process.Spawner
}

func newBuild(parent *rootOpts) *buildOpts {
	return &buildOpts{rootOpts: parent, spawner: process.Exec{}}
}

func (opts *buildOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the self build in a local checkout, as the delivery machine would.",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "directory of the checkout to build")
	return cmd
}

func (opts *buildOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	img, err := image.ParseTaggedRef(cfg.Image)
	if err != nil {
		return err
	}

	executor := &build.Executor{
		Spawner:   opts.spawner,
		Loader:    &project.LocalLoader{Dir: opts.dir},
		Plan:      build.SelfBuildPlan(img),
		ErrorCode: cfg.ErrorCode(),
		Logger:    log.With(log.NewLogfmtLogger(log.NewSyncWriter(cmd.ErrOrStderr())), "component", "build"),
	}
	outcome := executor.Execute(context.Background(), goal.Invocation{
		Goal: machine.SelfBuildGoal,
		Push: push.Event{Repo: push.RepoRef{Owner: cfg.Owner, Repo: cfg.Repo}},
		Log:  progress.NewWriterLog(cmd.ErrOrStderr()),
		Env:  process.AllowedEnv(),
	})
	if outcome.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
	}
	if outcome.Failed() {
		return fmt.Errorf("%s (code %d)", machine.SelfBuildGoal.FailedDescription, outcome.Code)
	}
	return nil
}
