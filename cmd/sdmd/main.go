package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/looking-for-freedom/lff-sdm/pkg/config"
	"github.com/looking-for-freedom/lff-sdm/pkg/daemon"
	daemonhttp "github.com/looking-for-freedom/lff-sdm/pkg/http/daemon"
	"github.com/looking-for-freedom/lff-sdm/pkg/job"
	"github.com/looking-for-freedom/lff-sdm/pkg/machine"
	"github.com/looking-for-freedom/lff-sdm/pkg/process"
	"github.com/looking-for-freedom/lff-sdm/pkg/project"
)

var version = "unversioned"

const (
	// EnvVariableWebhookSecret can be used instead of the flag, to
	// keep the secret out of the process list
	EnvVariableWebhookSecret = "SDM_GITHUB_WEBHOOK_SECRET"

	defaultJobStatusCacheSize = 100
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  sdmd is a software delivery machine that builds and deploys itself.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	var (
		logFormat     = fs.String("log-format", "fmt", "change the log format.")
		listenAddr    = fs.StringP("listen", "l", ":2866", "listen address where /metrics and API will be served")
		configFile    = fs.String("config", config.ConfigPath, "path to a config file; it is not an error for it to be missing, unless given explicitly")
		webhookSecret = fs.String("github-webhook-secret", os.Getenv(EnvVariableWebhookSecret), fmt.Sprintf("secret shared with GitHub for signing webhook payloads; you can also set the environment variable %s", EnvVariableWebhookSecret))

		// Goals
		goalTimeout  = fs.Duration("goal-timeout", 30*time.Minute, "duration after which the goals for one push are abandoned")
		workDir      = fs.String("workdir", "", "directory in which to clone pushed repositories; defaults to the system temporary directory")
		jobCacheSize = fs.Int("job-status-cache-size", defaultJobStatusCacheSize, "number of finished job statuses to keep for queries")

		// Kubernetes
		kubeconfig = fs.String("kubeconfig", "", "path to a kubeconfig; only required if out-of-cluster")
		master     = fs.String("master", "", "address of the Kubernetes API server; overrides any value in kubeconfig, only required if out-of-cluster")
		noCluster  = fs.Bool("no-cluster", false, "do not connect to Kubernetes; deploy goals will fail")

		versionFlag = fs.Bool("version", false, "get version number")
	)

	var bailErr error
	bindings := defineConfigFlags(fs, func(err error) { bailErr = err })
	if bailErr != nil {
		fmt.Fprintf(os.Stderr, "error defining flags: %s\n", bailErr.Error())
		os.Exit(2)
	}

	err := fs.Parse(os.Args[1:])
	switch {
	case err == pflag.ErrHelp:
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "error parsing command-line flags: %s\n", err.Error())
		fs.Usage()
		os.Exit(2)
	case *versionFlag:
		fmt.Println(version)
		os.Exit(0)
	}

	// Logger component.
	var logger log.Logger
	{
		switch *logFormat {
		case "json":
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		case "fmt":
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		default:
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	logger.Log("version", version)

	// Configuration.
	cfg, err := loadConfig(*configFile, fs.Changed("config"))
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	if err := bindings.apply(fs, &cfg); err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	logger.Log("machine", cfg.Name, "repo", cfg.Owner+"/"+cfg.Repo, "image", cfg.Image, "namespace", cfg.Namespace)

	// Cluster component.
	var kube k8sclient.Interface
	if *noCluster {
		logger.Log("kubernetes", "disabled")
	} else {
		logger := log.With(logger, "component", "cluster")
		restClientConfig, err := clusterConfig(*master, *kubeconfig)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		clientset, err := k8sclient.NewForConfig(restClientConfig)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		serverVersion, err := clientset.Discovery().ServerVersion()
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		logger.Log("kube", "connected", "host", restClientConfig.Host, "version", serverVersion.String())
		kube = clientset
	}

	// The machine.
	spawner := process.Exec{}
	sdm, err := machine.New(cfg, machine.Deps{
		Spawner: spawner,
		Loader:  &project.GitLoader{Spawner: spawner, BaseDir: *workDir},
		Kube:    kube,
		Logger:  log.With(logger, "component", "machine"),
		Env:     process.AllowedEnv(),
	})
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}

	// Mechanical components.

	// When we can receive from this channel, it indicates that we
	// are ready to shut down.
	errc := make(chan error)
	// This signals other routines to shut down;
	shutdown := make(chan struct{})
	// .. and this is to wait for other routines to shut down cleanly.
	shutdownWg := &sync.WaitGroup{}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	daemonLogger := log.With(logger, "component", "daemon")
	d := &daemon.Daemon{
		V:              version,
		Machine:        sdm,
		Jobs:           job.NewQueue(shutdown, shutdownWg),
		JobStatusCache: &job.StatusCache{Size: *jobCacheSize},
		GoalTimeout:    *goalTimeout,
		Logger:         daemonLogger,
	}

	shutdownWg.Add(1)
	go d.Loop(shutdown, shutdownWg, daemonLogger)

	// HTTP transport component.
	go func() {
		if len(*webhookSecret) == 0 {
			logger.Log("webhook", "github", "warning", "no webhook secret; payloads will not be verified")
		}
		handler := daemonhttp.NewHandler(d, daemonhttp.NewRouter(), daemonhttp.Options{
			WebhookSecret: []byte(*webhookSecret),
			Logger:        log.With(logger, "component", "http"),
		})
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", handler)
		logger.Log("addr", *listenAddr)
		errc <- http.ListenAndServe(*listenAddr, mux)
	}()

	// Go!
	logger.Log("exiting", <-errc)
	close(shutdown)
	shutdownWg.Wait()
}

// clusterConfig uses the in-cluster config when nothing is given to
// say otherwise.
func clusterConfig(master, kubeconfig string) (*rest.Config, error) {
	if master == "" && kubeconfig == "" {
		return rest.InClusterConfig()
	}
	return clientcmd.BuildConfigFromFlags(master, kubeconfig)
}
