package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sdmversion "github.com/looking-for-freedom/lff-sdm/pkg/version"
)

type nextVersionOpts struct {
	*rootOpts
	clock sdmversion.Clock
}

func newNextVersion(parent *rootOpts) *nextVersionOpts {
	return &nextVersionOpts{rootOpts: parent}
}

func (opts *nextVersionOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "next-version",
		Short: "Output the version the delivery machine would give a build made now.",
		RunE:  opts.RunE,
	}
}

func (opts *nextVersionOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	v := sdmversion.Versioner{Prefix: cfg.VersionPrefix, Clock: opts.clock}
	if err := v.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Version())
	return nil
}
