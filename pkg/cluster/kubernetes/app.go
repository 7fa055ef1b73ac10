// Package kubernetes deploys applications built by the machine to a
// Kubernetes cluster, as a Deployment and a Service.
package kubernetes

import (
	"bytes"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
	"github.com/looking-for-freedom/lff-sdm/pkg/version"
)

const (
	// TimestampAnnotation is put on the pod template of each deployment
	// so that every deploy rolls the pods, even when the image is the same.
	TimestampAnnotation = "atomist.com/ts"

	nameLabel      = "app.kubernetes.io/name"
	managedByLabel = "app.kubernetes.io/managed-by"
	managedBy      = "lff-sdm"

	DefaultNamespace = "default"
)

// Application describes what to deploy.
type Application struct {
	Name      string
	Namespace string
	Image     string
	Port      int32
	Replicas  int32
	// DeploymentSpec is the starting point for the Deployment; fields
	// above override what it says.
	DeploymentSpec *appsv1.Deployment
}

// AppData transforms an application before it is deployed.
type AppData func(app *Application, inv goal.Invocation) (*Application, error)

// FromPush gives the application for a pushed repository, before any
// AppData is applied: named for the repository, one replica, in the
// default namespace, with an empty deployment spec.
func FromPush(e push.Event) *Application {
	return &Application{
		Name:           e.Repo.Repo,
		Namespace:      DefaultNamespace,
		Replicas:       1,
		DeploymentSpec: &appsv1.Deployment{},
	}
}

// SelfAppData stamps the deployment pod template with the time, and
// points the application at the image, namespace and port given.
func SelfAppData(img image.Ref, namespace string, port int32, clock version.Clock) AppData {
	return func(app *Application, inv goal.Invocation) (*Application, error) {
		if app == nil {
			return nil, errors.New("no application to deploy")
		}
		if app.DeploymentSpec == nil {
			app.DeploymentSpec = &appsv1.Deployment{}
		}
		meta := &app.DeploymentSpec.Spec.Template.ObjectMeta
		if meta.Annotations == nil {
			meta.Annotations = map[string]string{}
		}
		meta.Annotations[TimestampAnnotation] = version.FormatDate(now(clock))

		out := *app
		out.Image = img.String()
		out.Namespace = namespace
		out.Port = port
		return &out, nil
	}
}

func (app *Application) labels() map[string]string {
	return map[string]string{
		nameLabel:      app.Name,
		managedByLabel: managedBy,
	}
}

func (app *Application) validate() error {
	switch {
	case app.Name == "":
		return errors.New("application has no name")
	case app.Namespace == "":
		return errors.Errorf("application %s has no namespace", app.Name)
	case app.Image == "":
		return errors.Errorf("application %s has no image", app.Name)
	}
	return nil
}

// applyTo makes the deployment given run the application.
func (app *Application) applyTo(d *appsv1.Deployment) {
	d.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"}
	d.Name = app.Name
	d.Namespace = app.Namespace
	d.Labels = mergeStrings(d.Labels, app.labels())

	replicas := app.Replicas
	if replicas < 1 {
		replicas = 1
	}
	d.Spec.Replicas = &replicas
	if d.Spec.Selector == nil {
		d.Spec.Selector = &metav1.LabelSelector{MatchLabels: map[string]string{nameLabel: app.Name}}
	}

	tmpl := &d.Spec.Template
	tmpl.Labels = mergeStrings(tmpl.Labels, app.labels())
	if app.DeploymentSpec != nil {
		tmpl.Annotations = mergeStrings(tmpl.Annotations, app.DeploymentSpec.Spec.Template.Annotations)
	}

	var container *corev1.Container
	for i := range tmpl.Spec.Containers {
		if tmpl.Spec.Containers[i].Name == app.Name {
			container = &tmpl.Spec.Containers[i]
		}
	}
	if container == nil {
		tmpl.Spec.Containers = append(tmpl.Spec.Containers, corev1.Container{Name: app.Name})
		container = &tmpl.Spec.Containers[len(tmpl.Spec.Containers)-1]
	}
	container.Image = app.Image
	if app.Port > 0 {
		container.Ports = []corev1.ContainerPort{{
			Name:          "http",
			ContainerPort: app.Port,
			Protocol:      corev1.ProtocolTCP,
		}}
	}
}

// Deployment gives the Deployment that runs the application.
func (app *Application) Deployment() *appsv1.Deployment {
	d := &appsv1.Deployment{}
	if app.DeploymentSpec != nil {
		d = app.DeploymentSpec.DeepCopy()
	}
	app.applyTo(d)
	return d
}

// Service gives the Service exposing the application's port, or nil
// if it has none.
func (app *Application) Service() *corev1.Service {
	if app.Port <= 0 {
		return nil
	}
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      app.Name,
			Namespace: app.Namespace,
			Labels:    app.labels(),
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{nameLabel: app.Name},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       app.Port,
				TargetPort: intstr.FromInt(int(app.Port)),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

// Manifests renders the application's resources as a multi-document
// YAML stream.
func Manifests(app *Application) ([]byte, error) {
	if err := app.validate(); err != nil {
		return nil, err
	}
	objs := []interface{}{app.Deployment()}
	if svc := app.Service(); svc != nil {
		objs = append(objs, svc)
	}
	var buf bytes.Buffer
	for _, obj := range objs {
		b, err := yaml.Marshal(obj)
		if err != nil {
			return nil, errors.Wrap(err, "marshalling manifest")
		}
		buf.WriteString("---\n")
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func mergeStrings(into, from map[string]string) map[string]string {
	if len(from) == 0 {
		return into
	}
	if into == nil {
		into = make(map[string]string, len(from))
	}
	for k, v := range from {
		into[k] = v
	}
	return into
}

func now(clock version.Clock) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now()
}
