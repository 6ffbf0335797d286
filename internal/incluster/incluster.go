// Package incluster runs the CLI inside the cluster as a batch Job. Long
// builds survive a disconnected laptop this way: the Job carries the same
// arguments the local invocation would, and the caller only follows logs.
package incluster

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/pointer"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/registry"
)

const (
	// ServiceAccountName identifies the in-cluster runner identity.
	ServiceAccountName = "ocp-midstreamer-sa"
	// ClusterRoleBindingName binds the runner to cluster-admin. The Job
	// patches operator deployments and deletes installer sets, so it needs
	// the same reach a logged-in administrator has.
	ClusterRoleBindingName = "ocp-midstreamer-crb"

	jobNamePrefix = "streamstress-run-"
)

// Executor creates and follows in-cluster runs.
type Executor struct {
	Client    client.Client
	Clientset kubernetes.Interface

	// Namespace holds the runner Job. Defaults to the build namespace.
	Namespace string
	// Image is the CLI image the Job runs.
	Image string

	// PodWaitInterval and PodWaitTimeout bound how long we wait for the
	// Job's pod to start before log streaming.
	PodWaitInterval time.Duration
	PodWaitTimeout  time.Duration
}

// NewExecutor returns an executor with production timings.
func NewExecutor(c client.Client, cs kubernetes.Interface, image string) *Executor {
	return &Executor{
		Client:          c,
		Clientset:       cs,
		Namespace:       registry.DefaultNamespace,
		Image:           image,
		PodWaitInterval: 2 * time.Second,
		PodWaitTimeout:  5 * time.Minute,
	}
}

// EnsureIdentity creates the runner ServiceAccount and its cluster-admin
// binding. Both creates tolerate prior runs.
func (e *Executor) EnsureIdentity(ctx context.Context) error {
	sa := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ServiceAccountName,
			Namespace: e.Namespace,
		},
	}
	if err := e.Client.Create(ctx, sa); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("creating serviceaccount %s: %w", ServiceAccountName, err)
	}

	crb := &rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: ClusterRoleBindingName},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     "cluster-admin",
		},
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      ServiceAccountName,
			Namespace: e.Namespace,
		}},
	}
	if err := e.Client.Create(ctx, crb); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("creating clusterrolebinding %s: %w", ClusterRoleBindingName, err)
	}
	return nil
}

// Run creates a Job executing the CLI with args and streams its pod logs to
// out until the pod finishes. The Job is left behind for inspection.
func (e *Executor) Run(ctx context.Context, args []string, out io.Writer) error {
	log := logr.FromContextOrDiscard(ctx)

	if err := e.EnsureIdentity(ctx); err != nil {
		return err
	}

	job := e.newJob(args)
	if err := e.Client.Create(ctx, job); err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	log.Info("created in-cluster run", "job", job.Name, "namespace", job.Namespace)

	podName, err := e.waitForPod(ctx, job.Name)
	if err != nil {
		return err
	}
	return e.streamLogs(ctx, podName, out)
}

func (e *Executor) newJob(args []string) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: jobNamePrefix,
			Namespace:    e.Namespace,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: pointer.Int32(0),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					ServiceAccountName: ServiceAccountName,
					RestartPolicy:      corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:  "streamstress",
						Image: e.Image,
						Args:  args,
					}},
				},
			},
		},
	}
}

// waitForPod returns the name of the Job's pod once it has started.
func (e *Executor) waitForPod(ctx context.Context, jobName string) (string, error) {
	var podName string
	err := wait.PollUntilContextTimeout(ctx,
		e.PodWaitInterval, e.PodWaitTimeout, true,
		func(ctx context.Context) (bool, error) {
			pods := &corev1.PodList{}
			err := e.Client.List(ctx, pods,
				client.InNamespace(e.Namespace),
				client.MatchingLabels{"job-name": jobName})
			if err != nil {
				return false, nil
			}
			for i := range pods.Items {
				pod := &pods.Items[i]
				switch pod.Status.Phase {
				case corev1.PodRunning, corev1.PodSucceeded, corev1.PodFailed:
					podName = pod.Name
					return true, nil
				}
			}
			return false, nil
		})
	if err != nil {
		return "", fmt.Errorf("pod for job %s not running within %s: %w",
			jobName, e.PodWaitTimeout, err)
	}
	return podName, nil
}

// streamLogs follows the pod's logs until it terminates.
func (e *Executor) streamLogs(ctx context.Context, podName string, out io.Writer) error {
	req := e.Clientset.CoreV1().Pods(e.Namespace).GetLogs(podName, &corev1.PodLogOptions{
		Follow: true,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		return fmt.Errorf("streaming logs of pod %s: %w", podName, err)
	}
	defer stream.Close()

	if _, err := io.Copy(out, stream); err != nil {
		return fmt.Errorf("reading logs of pod %s: %w", podName, err)
	}
	return nil
}
