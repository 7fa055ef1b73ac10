package main

import (
	"github.com/spf13/cobra"

	"github.com/looking-for-freedom/lff-sdm/pkg/cluster/kubernetes"
	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
	sdmversion "github.com/looking-for-freedom/lff-sdm/pkg/version"
)

type manifestsOpts struct {
	*rootOpts
	clock sdmversion.Clock
}

func newManifests(parent *rootOpts) *manifestsOpts {
	return &manifestsOpts{rootOpts: parent}
}

func (opts *manifestsOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "manifests",
		Short: "Output the Kubernetes manifests the delivery machine would deploy itself with.",
		RunE:  opts.RunE,
	}
}

func (opts *manifestsOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	img, err := image.ParseTaggedRef(cfg.Image)
	if err != nil {
		return err
	}

	e := push.Event{Repo: push.RepoRef{Owner: cfg.Owner, Repo: cfg.Repo}}
	appData := kubernetes.SelfAppData(img, cfg.Namespace, cfg.Port, opts.clock)
	app, err := appData(kubernetes.FromPush(e), goal.Invocation{Push: e})
	if err != nil {
		return err
	}
	app.Replicas = cfg.Replicas

	manifests, err := kubernetes.Manifests(app)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(manifests)
	return err
}
