package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/looking-for-freedom/lff-sdm/pkg/machine"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

type goalsOpts struct {
	*rootOpts
	repo push.RepoRef
}

func newGoals(parent *rootOpts) *goalsOpts {
	return &goalsOpts{rootOpts: parent}
}

func (opts *goalsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show the goals the delivery machine would plan for a push.",
		Example: `  sdmctl goals
  sdmctl goals --owner someone-else --repo lff-sdm`,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.repo.Owner, "owner", "", "owner of the pushed repository (default: the repository the machine builds)")
	cmd.Flags().StringVar(&opts.repo.Repo, "repo", "", "name of the pushed repository (default: the repository the machine builds)")
	cmd.Flags().StringVar(&opts.repo.Branch, "branch", "master", "branch pushed to")
	return cmd
}

func (opts *goalsOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	sdm, err := machine.New(cfg, machine.Deps{})
	if err != nil {
		return err
	}

	e := push.Event{Repo: opts.repo}
	if e.Repo.Owner == "" {
		e.Repo.Owner = cfg.Owner
	}
	if e.Repo.Repo == "" {
		e.Repo.Repo = cfg.Repo
	}
	set, ok := sdm.GoalsFor(e)
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "No goals for a push to %s\n", e.Repo)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Goal set %q for a push to %s\n\n", set.Name, e.Repo)
	w := newTabwriter(out)
	fmt.Fprintln(w, "GOAL\tDISPLAY NAME\tENVIRONMENT\tAFTER")
	for _, p := range set.Order() {
		after := strings.Join(p.Deps, ",")
		if after == "" {
			after = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Goal.UniqueName, p.Goal.DisplayName, p.Goal.Environment, after)
	}
	return w.Flush()
}
