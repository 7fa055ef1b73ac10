package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/looking-for-freedom/lff-sdm/pkg/job"
)

type jobOpts struct {
	*rootOpts
}

func newJob(parent *rootOpts) *jobOpts {
	return &jobOpts{rootOpts: parent}
}

func (opts *jobOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Ask about the jobs the delivery machine has run.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status <job ID>",
			Short: "Show how far a job got, and how each of its goals went.",
			RunE:  opts.status,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the jobs the delivery machine still has a status for, oldest first.",
			RunE:  opts.list,
		},
	)
	return cmd
}

func (opts *jobOpts) status(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected exactly one job ID")
	}
	status, err := opts.API.JobStatus(context.Background(), job.ID(args[0]))
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), status)
	return nil
}

func (opts *jobOpts) list(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	ctx := context.Background()
	ids, err := opts.API.RecentJobs(ctx)
	if err != nil {
		return err
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "JOB\tREPO\tSTATUS")
	for _, id := range ids {
		status, err := opts.API.JobStatus(ctx, id)
		if err != nil {
			// it may have been evicted since it was listed
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, status.Result.Repo, status.StatusString)
	}
	return w.Flush()
}
