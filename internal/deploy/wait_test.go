package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

// tektonScheme registers the typed core groups plus the operator's
// unstructured kinds so the fake client can serve them.
func tektonScheme(t *testing.T) *runtime.Scheme {
	t.Helper()

	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	scheme.AddKnownTypeWithName(tekton.TektonConfigGVK, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(tekton.TektonConfigListGVK, &unstructured.UnstructuredList{})
	scheme.AddKnownTypeWithName(tekton.InstallerSetGVK, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(tekton.InstallerSetListGVK, &unstructured.UnstructuredList{})
	return scheme
}

func readyTektonConfig() *unstructured.Unstructured {
	tc := tekton.NewTektonConfig()
	_ = unstructured.SetNestedSlice(tc.Object, []any{
		map[string]any{"type": "Ready", "status": "True"},
	}, "status", "conditions")
	return tc
}

func componentPod(namespace, name, image string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			Labels:    map[string]string{"app.kubernetes.io/part-of": "tekton-pipelines"},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "main", Image: image}},
		},
	}
}

func testWaiter(c client.Client, sleeps *[]time.Duration) *Waiter {
	return &Waiter{
		Client:       c,
		MaxAttempts:  4,
		InitialDelay: 10 * time.Second,
		MaxDelay:     30 * time.Second,
		Timeout:      10 * time.Minute,
		Sleep:        func(d time.Duration) { *sleeps = append(*sleeps, d) },
	}
}

func TestWaitConvergesImmediately(t *testing.T) {
	t.Parallel()

	c := fake.NewClientBuilder().
		WithScheme(tektonScheme(t)).
		WithObjects(
			readyTektonConfig(),
			componentPod("openshift-pipelines", "controller-abc",
				"image-registry.openshift-image-registry.svc:5000/tekton-upstream/controller@sha256:aaa"),
		).
		Build()

	var sleeps []time.Duration
	w := testWaiter(c, &sleeps)

	err := w.Wait(context.Background(), []EnvMapping{{
		Key:   "IMAGE_PIPELINES_CONTROLLER",
		Image: "image-registry.openshift-image-registry.svc:5000/tekton-upstream/controller",
	}})
	require.NoError(t, err)
	assert.Empty(t, sleeps)
}

func TestWaitConvergesAfterRetriesWithDoublingDelay(t *testing.T) {
	t.Parallel()

	var gets int
	c := fake.NewClientBuilder().
		WithScheme(tektonScheme(t)).
		WithObjects(
			readyTektonConfig(),
			componentPod("tekton-pipelines", "controller-abc", "reg/tekton-upstream/controller"),
		).
		WithInterceptorFuncs(interceptor.Funcs{
			Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey,
				obj client.Object, opts ...client.GetOption,
			) error {
				if err := c.Get(ctx, key, obj, opts...); err != nil {
					return err
				}
				if u, ok := obj.(*unstructured.Unstructured); ok &&
					u.GroupVersionKind() == tekton.TektonConfigGVK {
					gets++
					if gets < 3 {
						unstructured.RemoveNestedField(u.Object, "status")
					}
				}
				return nil
			},
		}).
		Build()

	var sleeps []time.Duration
	w := testWaiter(c, &sleeps)

	err := w.Wait(context.Background(), []EnvMapping{{Image: "reg/tekton-upstream/controller"}})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, sleeps)
}

func TestWaitDelayIsCappedAtMaxDelay(t *testing.T) {
	t.Parallel()

	c := fake.NewClientBuilder().WithScheme(tektonScheme(t)).Build()

	var sleeps []time.Duration
	w := testWaiter(c, &sleeps)
	w.MaxAttempts = 5

	err := w.Wait(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second,
	}, sleeps)
}

func TestWaitReportsUnreadyConfig(t *testing.T) {
	t.Parallel()

	c := fake.NewClientBuilder().WithScheme(tektonScheme(t)).Build()

	var sleeps []time.Duration
	w := testWaiter(c, &sleeps)

	err := w.Wait(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not converge after 4 attempts")
	assert.Contains(t, err.Error(), "TektonConfig is not Ready")
	assert.Contains(t, err.Error(), "oc logs")
}

func TestWaitReportsMissingImages(t *testing.T) {
	t.Parallel()

	c := fake.NewClientBuilder().
		WithScheme(tektonScheme(t)).
		WithObjects(readyTektonConfig()).
		Build()

	var sleeps []time.Duration
	w := testWaiter(c, &sleeps)

	err := w.Wait(context.Background(), []EnvMapping{{Image: "reg/tekton-upstream/controller"}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "TektonConfig is not Ready")
	assert.Contains(t, err.Error(), "image not observed in any running pod: reg/tekton-upstream/controller")
}

func TestImageObservedMatchesBothDirections(t *testing.T) {
	t.Parallel()

	observed := []string{"internal-registry.svc:5000/tekton-upstream/controller@sha256:aaa"}

	assert.True(t, imageObserved(
		"internal-registry.svc:5000/tekton-upstream/controller", observed),
		"expected is a prefix of the running image")
	assert.True(t, imageObserved(
		"internal-registry.svc:5000/tekton-upstream/controller@sha256:aaa", observed))
	assert.True(t, imageObserved("controller", observed),
		"short expected contained in running image")
	assert.False(t, imageObserved("webhook", observed))
}
