package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

// Waiter polls the cluster until the operator reports Ready and every
// expected image reference is observed running, or attempts run out. Both
// conditions must hold in the same poll.
type Waiter struct {
	Client client.Client

	// MaxAttempts bounds the number of polls.
	MaxAttempts int
	// InitialDelay is slept after the first unsuccessful poll; the delay
	// doubles per attempt up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Timeout is the overall wall-clock ceiling, independent of backoff.
	Timeout time.Duration

	// Sleep is a seam for tests. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewWaiter returns a waiter with the production polling policy.
func NewWaiter(c client.Client) *Waiter {
	return &Waiter{
		Client:       c,
		MaxAttempts:  20,
		InitialDelay: 10 * time.Second,
		MaxDelay:     30 * time.Second,
		Timeout:      10 * time.Minute,
		Sleep:        time.Sleep,
	}
}

// Wait blocks until convergence or exhaustion. The returned error names the
// unmet conditions; by contract the caller downgrades it to a warning.
func (w *Waiter) Wait(ctx context.Context, expected []EnvMapping) error {
	log := logr.FromContextOrDiscard(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.InitialDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = w.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	start := time.Now()
	var ready bool
	var missing []string

	for attempt := 1; attempt <= w.MaxAttempts; attempt++ {
		log.V(1).Info("checking reconciliation status",
			"attempt", attempt, "maxAttempts", w.MaxAttempts)

		ready = w.configReady(ctx)
		missing = nil
		if ready {
			missing = w.missingImages(ctx, expected)
		}
		if ready && len(missing) == 0 {
			log.Info("reconciliation converged", "attempts", attempt)
			return nil
		}

		if attempt == w.MaxAttempts || time.Since(start) > w.Timeout {
			break
		}
		w.Sleep(bo.NextBackOff())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "reconciliation did not converge after %d attempts", w.MaxAttempts)
	if !ready {
		b.WriteString("\n  - TektonConfig is not Ready")
	}
	for _, img := range missing {
		fmt.Fprintf(&b, "\n  - image not observed in any running pod: %s", img)
	}
	b.WriteString("\n  check operator logs: oc logs -n openshift-pipelines deploy/openshift-pipelines-operator")
	return fmt.Errorf("%s", b.String())
}

func (w *Waiter) configReady(ctx context.Context) bool {
	tc := &unstructured.Unstructured{}
	tc.SetGroupVersionKind(tekton.TektonConfigGVK)
	if err := w.Client.Get(ctx, client.ObjectKey{Name: tekton.TektonConfigName}, tc); err != nil {
		return false
	}
	return tekton.IsReady(tc)
}

// missingImages returns the expected references not substring-matched by any
// running pod container image. Matching is bidirectional to tolerate
// registry-host rewriting between push and pull addresses.
func (w *Waiter) missingImages(ctx context.Context, expected []EnvMapping) []string {
	var observed []string
	for _, ns := range tekton.ComponentPodNamespaces {
		pods := &corev1.PodList{}
		err := w.Client.List(ctx, pods,
			client.InNamespace(ns),
			client.MatchingLabels{"app.kubernetes.io/part-of": "tekton-pipelines"})
		if err != nil {
			continue
		}
		for i := range pods.Items {
			for _, container := range pods.Items[i].Spec.Containers {
				observed = append(observed, container.Image)
			}
		}
	}

	var missing []string
	for _, m := range expected {
		if !imageObserved(m.Image, observed) {
			missing = append(missing, m.Image)
		}
	}
	return missing
}

func imageObserved(expected string, observed []string) bool {
	for _, img := range observed {
		if strings.Contains(img, expected) || strings.Contains(expected, img) {
			return true
		}
	}
	return false
}
