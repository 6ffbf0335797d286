// Package setup prepares a cluster for midstream builds: registry exposure,
// namespace and pull RBAC, operator installation and the baseline
// TektonConfig. Every step is idempotent and safe to re-run on every
// invocation; a failing step is downgraded to a warning so a best-effort
// preparation pass never blocks the build/deploy pipeline behind it.
package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Step is one idempotent preparation action.
type Step struct {
	Name    string
	Run     func(ctx context.Context) error
	FixHint string
}

// Outcome reports a completed bootstrap pass. Warnings carry the failures of
// individual steps; the pass itself succeeds as long as every step was
// attempted.
type Outcome struct {
	Warnings []string
}

// Ok reports whether every step succeeded.
func (o Outcome) Ok() bool {
	return len(o.Warnings) == 0
}

// Bootstrapper runs the preparation sequence against one cluster.
type Bootstrapper struct {
	Client client.Client

	// Timings are overridable for tests.
	RouteWaitInterval time.Duration
	RouteWaitTimeout  time.Duration
	ReadyWaitInterval time.Duration
	ReadyWaitTimeout  time.Duration
	CreateRetries     int
	CreateBackoff     time.Duration

	// Sleep is a seam for tests. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewBootstrapper returns a bootstrapper with production timings.
func NewBootstrapper(c client.Client) *Bootstrapper {
	return &Bootstrapper{
		Client:            c,
		RouteWaitInterval: 2 * time.Second,
		RouteWaitTimeout:  30 * time.Second,
		ReadyWaitInterval: 5 * time.Second,
		ReadyWaitTimeout:  5 * time.Minute,
		CreateRetries:     6,
		CreateBackoff:     5 * time.Second,
		Sleep:             time.Sleep,
	}
}

// Steps returns the ordered preparation sequence. Later steps assume the
// earlier ones at least ran.
func (b *Bootstrapper) Steps() []Step {
	return []Step{
		{
			Name:    "ensure image registry exposed",
			Run:     b.ensureRegistryConfig,
			FixHint: `oc patch configs.imageregistry.operator.openshift.io/cluster --patch '{"spec":{"defaultRoute":true}}' --type=merge`,
		},
		{
			Name:    "wait for registry route",
			Run:     b.waitForRegistryRoute,
			FixHint: "check the image registry operator: oc get co image-registry",
		},
		{
			Name:    "ensure namespace and pull RBAC",
			Run:     b.ensureNamespaceRBAC,
			FixHint: "verify you can create namespaces and rolebindings",
		},
		{
			Name:    "ensure operator installed",
			Run:     b.ensureOperatorInstalled,
			FixHint: "install the OpenShift Pipelines operator from OperatorHub",
		},
		{
			Name:    "wait for operator ready",
			Run:     b.waitForOperatorReady,
			FixHint: "check the subscription: oc get subscription -n openshift-operators",
		},
		{
			Name:    "ensure TektonConfig",
			Run:     b.ensureTektonConfig,
			FixHint: "check the operator logs: oc logs -n openshift-operators deploy/openshift-pipelines-operator",
		},
	}
}

// Run executes every step in order, recording failures as warnings and
// continuing regardless.
func (b *Bootstrapper) Run(ctx context.Context) Outcome {
	log := logr.FromContextOrDiscard(ctx)

	var warnings *multierror.Error
	for _, step := range b.Steps() {
		log.V(1).Info("running bootstrap step", "step", step.Name)
		if err := step.Run(ctx); err != nil {
			warnings = multierror.Append(warnings,
				fmt.Errorf("%s: %w (hint: %s)", step.Name, err, step.FixHint))
			log.Info("bootstrap step failed, continuing",
				"step", step.Name, "error", err.Error())
		}
	}

	outcome := Outcome{}
	if warnings != nil {
		for _, err := range warnings.Errors {
			outcome.Warnings = append(outcome.Warnings, err.Error())
		}
	}
	return outcome
}

// retryCreate retries fn with doubling backoff, for creates racing freshly
// registered CRDs that are not served yet.
func (b *Bootstrapper) retryCreate(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.CreateBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Hour
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= b.CreateRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < b.CreateRetries {
			b.Sleep(bo.NextBackOff())
		}
	}
	return fmt.Errorf("after %d attempts: %w", b.CreateRetries, lastErr)
}
