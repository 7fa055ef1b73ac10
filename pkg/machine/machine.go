// Package machine is the software delivery machine: the goals it
// knows, the pushes it acts on, and dispatching a push to the goals
// planned for it.
package machine

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/looking-for-freedom/lff-sdm/pkg/build"
	"github.com/looking-for-freedom/lff-sdm/pkg/cluster/kubernetes"
	"github.com/looking-for-freedom/lff-sdm/pkg/config"
	sdmerr "github.com/looking-for-freedom/lff-sdm/pkg/errors"
	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
	"github.com/looking-for-freedom/lff-sdm/pkg/process"
	"github.com/looking-for-freedom/lff-sdm/pkg/project"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
	"github.com/looking-for-freedom/lff-sdm/pkg/version"
)

const (
	SelfBuildSetName = "Self Build"
	SelfTestName     = "SDM, build thyself"
)

var (
	VersionGoal = goal.Goal{
		UniqueName:           "version",
		DisplayName:          "Version",
		WorkingDescription:   "Calculating version",
		CompletedDescription: "Versioned",
		FailedDescription:    "Versioning failed",
		Environment:          goal.IndependentOfEnvironment,
	}
	SelfBuildGoal = goal.Goal{
		UniqueName:           "selfBuilder",
		DisplayName:          "Build",
		WorkingDescription:   "Building",
		CompletedDescription: "Built",
		FailedDescription:    "Build failed",
		Environment:          goal.IndependentOfEnvironment,
		Isolated:             true,
	}
	DeployGoal = goal.Goal{
		UniqueName:           "kubernetes-deploy-production",
		DisplayName:          "Deploy to production",
		WorkingDescription:   "Deploying to production",
		CompletedDescription: "Deployed to production",
		FailedDescription:    "Deployment to production failed",
		Environment:          goal.ProductionEnvironment,
	}
)

// Deps are the collaborators a machine works with.
type Deps struct {
	Spawner process.Spawner
	Loader  project.Loader
	// Kube is the cluster to deploy to; without one, deploys fail
	Kube   k8sclient.Interface
	Clock  version.Clock
	Logger log.Logger
	// Env is the base environment for everything goals spawn
	Env map[string]string
}

// Machine is built once from configuration; nothing about it changes
// afterwards.
type Machine struct {
	Name          string
	image         image.Ref
	versioner     version.Versioner
	contributions []goal.Contribution
	runner        goal.Runner
	logger        log.Logger
}

func New(cfg config.Config, deps Deps) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	img, err := image.ParseTaggedRef(cfg.Image)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	spawner := deps.Spawner
	if spawner == nil {
		spawner = process.Exec{}
	}
	loader := deps.Loader
	if loader == nil {
		loader = &project.GitLoader{Spawner: spawner}
	}

	versioner := version.Versioner{Prefix: cfg.VersionPrefix, Clock: deps.Clock}
	builder := &build.Executor{
		Spawner:   spawner,
		Loader:    loader,
		Plan:      build.SelfBuildPlan(img),
		Logger:    log.With(logger, "component", "build"),
		ErrorCode: cfg.ErrorCode(),
	}
	var deploy goal.Fulfillment
	if deps.Kube != nil {
		appData := withReplicas(kubernetes.SelfAppData(img, cfg.Namespace, cfg.Port, deps.Clock), cfg.Replicas)
		deployer := &kubernetes.Deployer{Client: deps.Kube, Logger: log.With(logger, "component", "deploy")}
		deploy = kubernetes.DeployGoal("kubernetes-deploy", deployer, appData)
	} else {
		deploy = noCluster
	}

	versionGoal := goal.Plan(VersionGoal, versioner.Goal())
	selfBuild := goal.Plan(SelfBuildGoal, goal.Fulfillment{Name: "SelfBuilder", Execute: builder.Execute}).After(VersionGoal)
	selfDeploy := goal.Plan(DeployGoal, deploy).After(SelfBuildGoal)
	set, err := goal.NewSet(SelfBuildSetName, versionGoal, selfBuild, selfDeploy)
	if err != nil {
		return nil, errors.Wrap(err, "planning goals")
	}

	selfTest := push.Named(SelfTestName, push.RepoIs(cfg.Owner, cfg.Repo))
	return &Machine{
		Name:          cfg.Name,
		image:         img,
		versioner:     versioner,
		contributions: []goal.Contribution{goal.WhenPushSatisfies(selfTest).SetGoals(set)},
		runner: goal.Runner{
			Logger: log.With(logger, "component", "goals"),
			Env:    deps.Env,
		},
		logger: logger,
	}, nil
}

var noCluster = goal.Fulfillment{
	Name: "no-cluster",
	Execute: func(ctx context.Context, inv goal.Invocation) goal.Outcome {
		return goal.Outcome{Code: 1, Message: "No Kubernetes cluster configured"}
	},
}

func withReplicas(data kubernetes.AppData, replicas int32) kubernetes.AppData {
	return func(app *kubernetes.Application, inv goal.Invocation) (*kubernetes.Application, error) {
		app, err := data(app, inv)
		if err != nil {
			return nil, err
		}
		if replicas > 0 {
			app.Replicas = replicas
		}
		return app, nil
	}
}

// Image is what the machine builds and deploys.
func (m *Machine) Image() image.Ref {
	return m.image
}

func (m *Machine) Versioner() version.Versioner {
	return m.versioner
}

// GoalsFor gives the goal set planned for a push, from the first
// contribution whose test the push passes.
func (m *Machine) GoalsFor(e push.Event) (goal.Set, bool) {
	for _, c := range m.contributions {
		if set, ok := c.Goals(e); ok {
			return set, true
		}
	}
	return goal.Set{}, false
}

// Dispatch runs the goals planned for a push, if any. It reports
// whether any goals were planned; an error means the push itself was
// unusable.
func (m *Machine) Dispatch(ctx context.Context, e push.Event) ([]goal.Status, bool, error) {
	if err := e.Validate(); err != nil {
		return nil, false, sdmerr.BadPush(err)
	}
	set, ok := m.GoalsFor(e)
	pushesReceived.With(sdmmetrics.LabelMatched, strconv.FormatBool(ok)).Add(1)
	if !ok {
		m.logger.Log("push", e.Repo.String(), "goals", "none")
		return nil, false, nil
	}

	started := time.Now()
	statuses := m.runner.Run(ctx, set, e)
	succeeded := goal.Succeeded(statuses)
	goalSetDuration.With(
		sdmmetrics.LabelGoalSet, set.Name,
		sdmmetrics.LabelSuccess, strconv.FormatBool(succeeded),
	).Observe(time.Since(started).Seconds())
	m.logger.Log("push", e.Repo.String(), "goalset", set.Name, "success", succeeded)
	return statuses, true, nil
}
