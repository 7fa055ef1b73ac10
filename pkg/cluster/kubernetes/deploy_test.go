package kubernetes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ghodss/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	fakekubernetes "k8s.io/client-go/kubernetes/fake"

	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	"github.com/looking-for-freedom/lff-sdm/pkg/progress"
	"github.com/looking-for-freedom/lff-sdm/pkg/push"
	"github.com/looking-for-freedom/lff-sdm/pkg/version"
)

var selfPush = push.Event{Repo: push.RepoRef{Owner: "looking-for-freedom", Repo: "lff-sdm"}}

func selfImage(t *testing.T) image.Ref {
	img, err := image.ParseRef("atmhoff/lff-sdm:1.0.0")
	require.NoError(t, err)
	return img
}

func clockAt(t time.Time) version.Clock {
	return func() time.Time { return t }
}

func TestSelfAppData(t *testing.T) {
	at := time.Date(2019, 10, 25, 14, 30, 5, 0, time.UTC)
	data := SelfAppData(selfImage(t), "lff", 2866, clockAt(at))

	app, err := data(FromPush(selfPush), goal.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, "lff-sdm", app.Name)
	assert.Equal(t, "atmhoff/lff-sdm:1.0.0", app.Image)
	assert.Equal(t, "lff", app.Namespace)
	assert.Equal(t, int32(2866), app.Port)
	assert.Equal(t, "20191025143005", app.DeploymentSpec.Spec.Template.Annotations[TimestampAnnotation])
}

func TestSelfAppDataCreatesMissingStructure(t *testing.T) {
	data := SelfAppData(selfImage(t), "lff", 2866, nil)

	app, err := data(&Application{Name: "lff-sdm"}, goal.Invocation{})
	require.NoError(t, err)
	require.NotNil(t, app.DeploymentSpec)
	assert.NotEmpty(t, app.DeploymentSpec.Spec.Template.Annotations[TimestampAnnotation])

	existing := &Application{
		Name: "lff-sdm",
		DeploymentSpec: &appsv1.Deployment{
			Spec: appsv1.DeploymentSpec{
				Template: corev1.PodTemplateSpec{
					ObjectMeta: metav1.ObjectMeta{Annotations: map[string]string{"keep": "me"}},
				},
			},
		},
	}
	app, err = data(existing, goal.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, "me", app.DeploymentSpec.Spec.Template.Annotations["keep"])

	_, err = data(nil, goal.Invocation{})
	assert.Error(t, err)
}

func TestSelfAppDataIdempotent(t *testing.T) {
	first := time.Date(2019, 10, 25, 14, 30, 5, 0, time.UTC)
	second := first.Add(time.Minute)
	img := selfImage(t)

	once, err := SelfAppData(img, "lff", 2866, clockAt(first))(FromPush(selfPush), goal.Invocation{})
	require.NoError(t, err)
	twice, err := SelfAppData(img, "lff", 2866, clockAt(second))(once, goal.Invocation{})
	require.NoError(t, err)

	assert.Equal(t, once.Image, twice.Image)
	assert.Equal(t, once.Namespace, twice.Namespace)
	assert.Equal(t, once.Port, twice.Port)
	assert.Equal(t, "20191025143105", twice.DeploymentSpec.Spec.Template.Annotations[TimestampAnnotation])
}

func selfApp(t *testing.T, at time.Time) *Application {
	app, err := SelfAppData(selfImage(t), "lff", 2866, clockAt(at))(FromPush(selfPush), goal.Invocation{})
	require.NoError(t, err)
	return app
}

func TestDeployCreates(t *testing.T) {
	client := fakekubernetes.NewSimpleClientset()
	d := &Deployer{Client: client}
	app := selfApp(t, time.Date(2019, 10, 25, 14, 30, 5, 0, time.UTC))

	require.NoError(t, d.Deploy(context.Background(), app))

	_, err := client.CoreV1().Namespaces().Get("lff", metav1.GetOptions{})
	assert.NoError(t, err)

	dep, err := client.AppsV1().Deployments("lff").Get("lff-sdm", metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, dep.Spec.Template.Spec.Containers, 1)
	c := dep.Spec.Template.Spec.Containers[0]
	assert.Equal(t, "atmhoff/lff-sdm:1.0.0", c.Image)
	assert.Equal(t, int32(2866), c.Ports[0].ContainerPort)
	assert.Equal(t, int32(1), *dep.Spec.Replicas)
	assert.Equal(t, "20191025143005", dep.Spec.Template.Annotations[TimestampAnnotation])
	assert.Equal(t, "lff-sdm", dep.Spec.Selector.MatchLabels[nameLabel])

	svc, err := client.CoreV1().Services("lff").Get("lff-sdm", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2866), svc.Spec.Ports[0].Port)
	assert.Equal(t, "lff-sdm", svc.Spec.Selector[nameLabel])
}

func TestDeployPatchesExisting(t *testing.T) {
	client := fakekubernetes.NewSimpleClientset()
	d := &Deployer{Client: client}
	first := selfApp(t, time.Date(2019, 10, 25, 14, 30, 5, 0, time.UTC))
	require.NoError(t, d.Deploy(context.Background(), first))

	// something else changed the deployment in the meantime
	dep, err := client.AppsV1().Deployments("lff").Get("lff-sdm", metav1.GetOptions{})
	require.NoError(t, err)
	dep.Spec.Template.Spec.Containers = append(dep.Spec.Template.Spec.Containers, corev1.Container{Name: "sidecar", Image: "sidecar:1"})
	_, err = client.AppsV1().Deployments("lff").Update(dep)
	require.NoError(t, err)

	second := selfApp(t, time.Date(2019, 10, 26, 9, 0, 0, 0, time.UTC))
	second.Image = "atmhoff/lff-sdm:1.0.1"
	require.NoError(t, d.Deploy(context.Background(), second))

	dep, err = client.AppsV1().Deployments("lff").Get("lff-sdm", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "20191026090000", dep.Spec.Template.Annotations[TimestampAnnotation])
	images := map[string]string{}
	for _, c := range dep.Spec.Template.Spec.Containers {
		images[c.Name] = c.Image
	}
	assert.Equal(t, map[string]string{"lff-sdm": "atmhoff/lff-sdm:1.0.1", "sidecar": "sidecar:1"}, images)

	var patches int
	for _, action := range client.Actions() {
		if action.GetVerb() == "patch" {
			patches++
		}
	}
	assert.Equal(t, 1, patches, "the service is unchanged, so only the deployment is patched")
}

func TestDeployUnchanged(t *testing.T) {
	client := fakekubernetes.NewSimpleClientset()
	d := &Deployer{Client: client}
	app := selfApp(t, time.Date(2019, 10, 25, 14, 30, 5, 0, time.UTC))
	require.NoError(t, d.Deploy(context.Background(), app))
	require.NoError(t, d.Deploy(context.Background(), app))

	for _, action := range client.Actions() {
		assert.NotEqual(t, "patch", action.GetVerb())
	}
}

func TestDeployInvalid(t *testing.T) {
	d := &Deployer{Client: fakekubernetes.NewSimpleClientset()}
	app := FromPush(selfPush)
	assert.Error(t, d.Deploy(context.Background(), app), "no image")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app = selfApp(t, time.Now())
	assert.Equal(t, context.Canceled, d.Deploy(ctx, app))
}

func TestDeployGoal(t *testing.T) {
	client := fakekubernetes.NewSimpleClientset()
	f := DeployGoal("kubernetes-deploy", &Deployer{Client: client}, SelfAppData(selfImage(t), "lff", 2866, nil))
	assert.Equal(t, "kubernetes-deploy", f.Name)

	buf := progress.NewBuffer()
	outcome := f.Execute(context.Background(), goal.Invocation{Push: selfPush, Log: buf})
	assert.False(t, outcome.Failed(), outcome.Message)
	assert.Equal(t, "Deployed atmhoff/lff-sdm:1.0.0 to lff/lff-sdm", outcome.Message)
	assert.Contains(t, buf.String(), "Deploying atmhoff/lff-sdm:1.0.0 to lff/lff-sdm")

	noImage := DeployGoal("kubernetes-deploy", &Deployer{Client: client}, nil)
	outcome = noImage.Execute(context.Background(), goal.Invocation{Push: selfPush, Log: progress.NewBuffer()})
	assert.True(t, outcome.Failed())
}

func TestManifests(t *testing.T) {
	app := selfApp(t, time.Date(2019, 10, 25, 14, 30, 5, 0, time.UTC))
	out, err := Manifests(app)
	require.NoError(t, err)

	docs := strings.Split(strings.TrimPrefix(string(out), "---\n"), "---\n")
	require.Len(t, docs, 2)

	var dep appsv1.Deployment
	require.NoError(t, yaml.Unmarshal([]byte(docs[0]), &dep))
	assert.Equal(t, "Deployment", dep.Kind)
	assert.Equal(t, "lff", dep.Namespace)
	assert.Equal(t, "atmhoff/lff-sdm:1.0.0", dep.Spec.Template.Spec.Containers[0].Image)

	var svc corev1.Service
	require.NoError(t, yaml.Unmarshal([]byte(docs[1]), &svc))
	assert.Equal(t, "Service", svc.Kind)
	assert.Equal(t, int32(2866), svc.Spec.Ports[0].Port)

	_, err = Manifests(FromPush(selfPush))
	assert.Error(t, err)
}
