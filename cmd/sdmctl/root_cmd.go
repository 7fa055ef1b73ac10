package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/looking-for-freedom/lff-sdm/pkg/api"
	"github.com/looking-for-freedom/lff-sdm/pkg/config"
	transport "github.com/looking-for-freedom/lff-sdm/pkg/http"
	"github.com/looking-for-freedom/lff-sdm/pkg/http/client"
)

const (
	EnvVariableURL    = "SDM_URL"
	EnvVariableConfig = "SDM_CONFIG"

	defaultURL = "http://localhost:2866"
)

type rootOpts struct {
	URL        string
	ConfigPath string
	Timeout    time.Duration
	API        api.Server
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
sdmctl talks to a software delivery machine, and can do what it does
by hand.

Workflow:
  sdmctl notify --clone-url https://github.com/looking-for-freedom/lff-sdm --sha 0d1a26e --await  # Build and deploy a commit
  sdmctl job list                                                                                  # What has been done lately?
  sdmctl job status 2d6fb7a1-...                                                                   # How did it go?
  sdmctl build --dir .                                                                             # Build a checkout locally
  sdmctl manifests                                                                                 # What would be deployed?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "sdmctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "",
		fmt.Sprintf("base URL of the sdmd API server; you can also set the environment variable %s (default %q)", EnvVariableURL, defaultURL))
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "",
		fmt.Sprintf("delivery machine config file, for commands run locally; you can also set the environment variable %s", EnvVariableConfig))
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 60*time.Second, "timeout for requests to the daemon")

	cmd.AddCommand(
		newVersionCommand(),
		newNotify(opts).Command(),
		newJob(opts).Command(),
		newBuild(opts).Command(),
		newNextVersion(opts).Command(),
		newManifests(opts).Command(),
		newGoals(opts).Command(),
	)

	return cmd
}

func getFromEnv(flagValue, envName, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return def
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	opts.URL = getFromEnv(opts.URL, EnvVariableURL, defaultURL)
	opts.ConfigPath = getFromEnv(opts.ConfigPath, EnvVariableConfig, "")
	if opts.API == nil {
		opts.API = client.New(&http.Client{Timeout: opts.Timeout}, transport.NewAPIRouter(), opts.URL)
	}
	return nil
}

// config is the delivery machine configuration, for the commands
// that do locally what the daemon would do.
func (opts *rootOpts) config() (config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(opts.ConfigPath)
}
