package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type notifyOpts struct {
	*rootOpts
	repo    push.RepoRef
	message string
	await   bool
	// how long to wait for the goals, when awaiting
	awaitTimeout time.Duration
}

func newNotify(parent *rootOpts) *notifyOpts {
	return &notifyOpts{rootOpts: parent}
}

func (opts *notifyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Tell the delivery machine about a push, as a webhook would.",
		Example: `  sdmctl notify --owner looking-for-freedom --repo lff-sdm --branch master --sha 0d1a26e
  sdmctl notify --clone-url git@github.com:looking-for-freedom/lff-sdm.git --await`,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.repo.Owner, "owner", "", "owner of the pushed repository; taken from the clone URL if not given")
	cmd.Flags().StringVar(&opts.repo.Repo, "repo", "", "name of the pushed repository; taken from the clone URL if not given")
	cmd.Flags().StringVar(&opts.repo.URL, "clone-url", "", "URL the repository can be cloned from")
	cmd.Flags().StringVar(&opts.repo.Branch, "branch", "", "branch that was pushed to")
	cmd.Flags().StringVar(&opts.repo.SHA, "sha", "", "commit that was pushed")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "commit message of the push")
	cmd.Flags().BoolVarP(&opts.await, "await", "w", false, "wait for the goals of the push to finish, and report on them")
	cmd.Flags().DurationVar(&opts.awaitTimeout, "await-timeout", 30*time.Minute, "how long to wait for the goals of the push, with --await")
	return cmd
}

func (opts *notifyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	e := push.Event{Repo: opts.repo, Message: opts.message}
	if err := e.Validate(); err != nil {
		return newUsageError(err.Error())
	}

	ctx := context.Background()
	jobID, err := opts.API.NotifyPush(ctx, e)
	if err != nil {
		return err
	}
	if jobID == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Push ignored")
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Job ID %s\n", string(jobID))
	if !opts.await {
		return nil
	}
	return awaitJob(ctx, cmd.OutOrStdout(), opts.API, jobID, opts.awaitTimeout)
}
