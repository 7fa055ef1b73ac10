package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	sdmmetrics "github.com/looking-for-freedom/lff-sdm/pkg/metrics"
)

// Deployer puts applications into a cluster. A deployment that
// doesn't exist is created; one that does is patched with only what
// has changed.
type Deployer struct {
	Client k8sclient.Interface
	Logger log.Logger
}

func (d *Deployer) logger() log.Logger {
	if d.Logger == nil {
		return log.NewNopLogger()
	}
	return d.Logger
}

// Deploy makes sure the namespace, Deployment and Service for the
// application exist and match it.
func (d *Deployer) Deploy(ctx context.Context, app *Application) (err error) {
	defer func(start time.Time) {
		deployDuration.With(
			sdmmetrics.LabelSuccess, strconv.FormatBool(err == nil),
		).Observe(time.Since(start).Seconds())
	}(time.Now())

	if err := app.validate(); err != nil {
		return err
	}
	logger := log.With(d.logger(), "namespace", app.Namespace, "app", app.Name)
	for _, step := range []func(*Application, log.Logger) error{
		d.ensureNamespace,
		d.applyDeployment,
		d.applyService,
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(app, logger); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deployer) ensureNamespace(app *Application, logger log.Logger) error {
	namespaces := d.Client.CoreV1().Namespaces()
	_, err := namespaces.Get(app.Namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "getting namespace %s", app.Namespace)
	}
	_, err = namespaces.Create(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: app.Namespace},
	})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "creating namespace %s", app.Namespace)
	}
	logger.Log("created", "namespace")
	return nil
}

func (d *Deployer) applyDeployment(app *Application, logger log.Logger) error {
	deployments := d.Client.AppsV1().Deployments(app.Namespace)
	existing, err := deployments.Get(app.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := deployments.Create(app.Deployment()); err != nil {
			return errors.Wrapf(err, "creating deployment %s/%s", app.Namespace, app.Name)
		}
		logger.Log("created", "deployment", "image", app.Image)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "getting deployment %s/%s", app.Namespace, app.Name)
	}

	desired := existing.DeepCopy()
	app.applyTo(desired)
	desired.TypeMeta = existing.TypeMeta
	patch, err := mergePatch(existing, desired)
	if err != nil {
		return errors.Wrapf(err, "computing patch for deployment %s/%s", app.Namespace, app.Name)
	}
	if patch == nil {
		logger.Log("unchanged", "deployment")
		return nil
	}
	if _, err := deployments.Patch(app.Name, types.MergePatchType, patch); err != nil {
		return errors.Wrapf(err, "patching deployment %s/%s", app.Namespace, app.Name)
	}
	logger.Log("patched", "deployment", "image", app.Image)
	return nil
}

func (d *Deployer) applyService(app *Application, logger log.Logger) error {
	svc := app.Service()
	if svc == nil {
		return nil
	}
	services := d.Client.CoreV1().Services(app.Namespace)
	existing, err := services.Get(app.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := services.Create(svc); err != nil {
			return errors.Wrapf(err, "creating service %s/%s", app.Namespace, app.Name)
		}
		logger.Log("created", "service", "port", app.Port)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "getting service %s/%s", app.Namespace, app.Name)
	}

	desired := existing.DeepCopy()
	desired.Labels = mergeStrings(desired.Labels, svc.Labels)
	desired.Spec.Selector = svc.Spec.Selector
	desired.Spec.Ports = svc.Spec.Ports
	patch, err := mergePatch(existing, desired)
	if err != nil {
		return errors.Wrapf(err, "computing patch for service %s/%s", app.Namespace, app.Name)
	}
	if patch == nil {
		return nil
	}
	if _, err := services.Patch(app.Name, types.MergePatchType, patch); err != nil {
		return errors.Wrapf(err, "patching service %s/%s", app.Namespace, app.Name)
	}
	logger.Log("patched", "service", "port", app.Port)
	return nil
}

// mergePatch gives the JSON merge patch that takes original to
// modified, or nil if they are the same.
func mergePatch(original, modified interface{}) ([]byte, error) {
	origBytes, err := json.Marshal(original)
	if err != nil {
		return nil, err
	}
	modBytes, err := json.Marshal(modified)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(origBytes, modBytes)
	if err != nil {
		return nil, err
	}
	if string(patch) == "{}" {
		return nil, nil
	}
	return patch, nil
}

// DeployGoal gives the fulfillment of a deploy goal: it starts from the
// pushed repository's application, transforms it with data, and
// deploys the result.
func DeployGoal(name string, deployer *Deployer, data AppData) goal.Fulfillment {
	return goal.Fulfillment{
		Name: name,
		Execute: func(ctx context.Context, inv goal.Invocation) goal.Outcome {
			app := FromPush(inv.Push)
			if data != nil {
				var err error
				if app, err = data(app, inv); err != nil {
					return goal.Outcome{Code: 1, Message: "Preparing deployment: " + err.Error()}
				}
			}
			fmt.Fprintf(inv.Log, "Deploying %s to %s/%s\n", app.Image, app.Namespace, app.Name)
			if err := deployer.Deploy(ctx, app); err != nil {
				if inv.Logger != nil {
					inv.Logger.Log("err", err)
				}
				fmt.Fprintf(inv.Log, "Deploy failed: %s\n", err)
				return goal.Outcome{Code: 1, Message: err.Error()}
			}
			return goal.Success(fmt.Sprintf("Deployed %s to %s/%s", app.Image, app.Namespace, app.Name))
		},
	}
}
