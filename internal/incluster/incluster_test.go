package incluster

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func testExecutor(c client.Client, cs kubernetes.Interface) *Executor {
	e := NewExecutor(c, cs, "registry/tekton-upstream/streamstress:dev")
	e.PodWaitInterval = time.Millisecond
	e.PodWaitTimeout = 10 * time.Millisecond
	return e
}

func TestEnsureIdentity(t *testing.T) {
	t.Parallel()

	c := fake.NewClientBuilder().Build()
	e := testExecutor(c, nil)

	require.NoError(t, e.EnsureIdentity(context.Background()))
	// Second pass tolerates the existing objects.
	require.NoError(t, e.EnsureIdentity(context.Background()))

	sa := &corev1.ServiceAccount{}
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{
		Namespace: "tekton-upstream", Name: ServiceAccountName,
	}, sa))

	crb := &rbacv1.ClusterRoleBinding{}
	require.NoError(t, c.Get(context.Background(),
		client.ObjectKey{Name: ClusterRoleBindingName}, crb))
	assert.Equal(t, "cluster-admin", crb.RoleRef.Name)
	require.Len(t, crb.Subjects, 1)
	assert.Equal(t, ServiceAccountName, crb.Subjects[0].Name)
	assert.Equal(t, "tekton-upstream", crb.Subjects[0].Namespace)
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	e := testExecutor(nil, nil)
	job := e.newJob([]string{"deploy", "pipeline:pr/123"})

	assert.Equal(t, "tekton-upstream", job.Namespace)
	assert.Equal(t, jobNamePrefix, job.GenerateName)
	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Zero(t, *job.Spec.BackoffLimit, "a failed run is inspected, not retried")

	pod := job.Spec.Template.Spec
	assert.Equal(t, ServiceAccountName, pod.ServiceAccountName)
	assert.Equal(t, corev1.RestartPolicyNever, pod.RestartPolicy)
	require.Len(t, pod.Containers, 1)
	assert.Equal(t, "registry/tekton-upstream/streamstress:dev", pod.Containers[0].Image)
	assert.Equal(t, []string{"deploy", "pipeline:pr/123"}, pod.Containers[0].Args)
}

func TestWaitForPod(t *testing.T) {
	t.Parallel()

	t.Run("finds the running pod", func(t *testing.T) {
		t.Parallel()

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "tekton-upstream",
				Name:      "streamstress-run-abc12-pod",
				Labels:    map[string]string{"job-name": "streamstress-run-abc12"},
			},
			Status: corev1.PodStatus{Phase: corev1.PodRunning},
		}
		c := fake.NewClientBuilder().WithObjects(pod).Build()

		name, err := testExecutor(c, nil).waitForPod(context.Background(), "streamstress-run-abc12")
		require.NoError(t, err)
		assert.Equal(t, "streamstress-run-abc12-pod", name)
	})

	t.Run("pending pod times out", func(t *testing.T) {
		t.Parallel()

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "tekton-upstream",
				Name:      "streamstress-run-abc12-pod",
				Labels:    map[string]string{"job-name": "streamstress-run-abc12"},
			},
			Status: corev1.PodStatus{Phase: corev1.PodPending},
		}
		c := fake.NewClientBuilder().WithObjects(pod).Build()

		_, err := testExecutor(c, nil).waitForPod(context.Background(), "streamstress-run-abc12")
		require.Error(t, err)
	})
}

func TestStreamLogs(t *testing.T) {
	t.Parallel()

	cs := k8sfake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: "tekton-upstream",
			Name:      "streamstress-run-abc12-pod",
		},
	})
	e := testExecutor(nil, cs)

	out := &bytes.Buffer{}
	require.NoError(t, e.streamLogs(context.Background(), "streamstress-run-abc12-pod", out))
	assert.NotEmpty(t, out.String(), "fake clientset serves placeholder logs")
}

func TestVersionTag(t *testing.T) {
	t.Parallel()

	// Under `go test` the main module has no release version, so the image
	// tag degrades to dev.
	assert.Equal(t, "dev", versionTag())
}
