package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/build"
	"github.com/openshift-pipelines/streamstress/internal/cluster"
	"github.com/openshift-pipelines/streamstress/internal/config"
	"github.com/openshift-pipelines/streamstress/internal/registry"
	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

// Result summarizes one component's deploy pass.
type Result struct {
	Component   string
	Target      Target
	Mappings    []EnvMapping
	Invalidated int
	// Converged is false when the reconciliation wait gave up; by contract
	// that alone never fails the deploy.
	Converged bool
	Warnings  []string
}

// Orchestrator composes the deploy flow for one component at a time.
// Components deploy sequentially: patching a shared workload concurrently
// would race.
type Orchestrator struct {
	Client  client.Client
	Configs config.Config
	// Patcher selects the env patch strategy. Defaults to the Deployment
	// strategy in NewOrchestrator.
	Patcher EnvPatcher
	Waiter  *Waiter
}

// NewOrchestrator wires the default deploy flow.
func NewOrchestrator(c client.Client, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		Client:  c,
		Configs: cfg,
		Patcher: DeploymentEnvPatcher{Client: c},
		Waiter:  NewWaiter(c),
	}
}

// Run deploys one component's built images to the live operator.
func (o *Orchestrator) Run(ctx context.Context, component, reg string, images []build.Image) (Result, error) {
	log := logr.FromContextOrDiscard(ctx)
	res := Result{Component: component}

	if err := o.verifyOperator(ctx); err != nil {
		return res, err
	}

	// Pods pull through the internal service address, not the external route.
	internal := registry.ToInternal(reg)

	mappings, err := BuildMappings(o.Configs, component, internal, images)
	if err != nil {
		return res, err
	}
	res.Mappings = mappings

	target, err := Locate(ctx, o.Client)
	if err != nil {
		return res, err
	}
	res.Target = target
	log.Info("located operator controller", "target", target.String())

	if err := o.Patcher.PatchEnv(ctx, target, mappings); err != nil {
		return res, fmt.Errorf("patching env via %s strategy: %w", o.Patcher.Name(), err)
	}
	log.Info("patched operator environment",
		"strategy", o.Patcher.Name(), "vars", len(mappings))

	imageNamespace := namespaceOf(internal)
	if err := cluster.EnsureImagePullRBAC(ctx, o.Client, imageNamespace); err != nil {
		return res, err
	}

	prefixOverride := o.Configs[component].InstallerSetPrefix
	deleted, err := Invalidate(ctx, o.Client, component, prefixOverride)
	if err != nil {
		return res, err
	}
	res.Invalidated = deleted
	log.Info("invalidated installer sets", "count", deleted)

	if err := o.Waiter.Wait(ctx, mappings); err != nil {
		// Convergence failure is reported, not fatal.
		res.Warnings = append(res.Warnings, err.Error())
		return res, nil
	}
	res.Converged = true
	return res, nil
}

// verifyOperator checks the TektonConfig singleton exists before touching
// anything, with actionable diagnostics for the common failure modes.
func (o *Orchestrator) verifyOperator(ctx context.Context) error {
	tc := &unstructured.Unstructured{}
	tc.SetGroupVersionKind(tekton.TektonConfigGVK)
	err := o.Client.Get(ctx, client.ObjectKey{Name: tekton.TektonConfigName}, tc)
	switch {
	case err == nil:
		return nil
	case apierrors.IsNotFound(err):
		return fmt.Errorf(
			"TektonConfig %q does not exist: is the OpenShift Pipelines operator installed?",
			tekton.TektonConfigName)
	case apierrors.IsForbidden(err):
		return fmt.Errorf(
			"insufficient permissions to read TektonConfig: ensure you have cluster-admin or equivalent RBAC")
	default:
		return fmt.Errorf("verifying operator installation: %w", err)
	}
}

func namespaceOf(internalRegistry string) string {
	if idx := strings.LastIndexByte(internalRegistry, '/'); idx >= 0 {
		return internalRegistry[idx+1:]
	}
	return registry.DefaultNamespace
}
