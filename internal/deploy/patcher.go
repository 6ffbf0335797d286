package deploy

import (
	"context"
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

// Target is the located operator controller workload. Valid only for the
// current invocation; the controller may move between runs.
type Target struct {
	Namespace string
	Name      string
}

func (t Target) String() string {
	return t.Namespace + "/" + t.Name
}

// Locate finds the operator controller deployment. Known namespace/name
// pairs are probed first (most reliable for OLM-managed operators), label
// selectors across the same namespaces are the fallback.
func Locate(ctx context.Context, c client.Client) (Target, error) {
	for _, ns := range tekton.OperatorNamespaces {
		for _, name := range tekton.OperatorDeploymentNames {
			dep := &appsv1.Deployment{}
			if err := c.Get(ctx, client.ObjectKey{Namespace: ns, Name: name}, dep); err == nil {
				return Target{Namespace: ns, Name: dep.Name}, nil
			}
		}
	}

	for _, ns := range tekton.OperatorNamespaces {
		for _, selector := range tekton.OperatorLabelSelectors {
			list := &appsv1.DeploymentList{}
			err := c.List(ctx, list, client.InNamespace(ns), client.MatchingLabels(selector))
			if err != nil {
				return Target{}, fmt.Errorf("listing deployments in %s: %w", ns, err)
			}
			if len(list.Items) > 0 {
				return Target{Namespace: ns, Name: list.Items[0].Name}, nil
			}
		}
	}

	return Target{}, fmt.Errorf(
		"operator controller deployment not found\nchecked namespaces: %s\nchecked names: %s\nchecked selectors: %s",
		strings.Join(tekton.OperatorNamespaces, ", "),
		strings.Join(tekton.OperatorDeploymentNames, ", "),
		selectorStrings())
}

func selectorStrings() string {
	var parts []string
	for _, sel := range tekton.OperatorLabelSelectors {
		for k, v := range sel {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, ", ")
}

// EnvPatcher applies image mappings to the operator's lifecycle container
// environment. Two implementations exist because each was broken under a
// different platform version; which one to use is the caller's policy.
type EnvPatcher interface {
	Name() string
	PatchEnv(ctx context.Context, target Target, mappings []EnvMapping) error
}

// DeploymentEnvPatcher patches the live Deployment directly, bypassing the
// owning lifecycle manager. OLM does not revert direct workload edits, while
// manifest-level env changes were observed to not propagate at all on some
// operator versions.
type DeploymentEnvPatcher struct {
	Client client.Client
}

var _ EnvPatcher = DeploymentEnvPatcher{}

func (p DeploymentEnvPatcher) Name() string { return "deployment" }

func (p DeploymentEnvPatcher) PatchEnv(ctx context.Context, target Target, mappings []EnvMapping) error {
	dep := &appsv1.Deployment{}
	key := client.ObjectKey{Namespace: target.Namespace, Name: target.Name}
	if err := p.Client.Get(ctx, key, dep); err != nil {
		return fmt.Errorf("getting Deployment %s: %w", target, err)
	}

	containers := dep.Spec.Template.Spec.Containers
	idx := -1
	for i := range containers {
		if containers[i].Name == tekton.LifecycleContainerName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf(
			"container %q not found in Deployment %s", tekton.LifecycleContainerName, target)
	}

	containers[idx].Env = mergeEnv(containers[idx].Env, mappings)

	// Full-resource replace so the read-modify-write stays atomic under the
	// resource version read above.
	if err := p.Client.Update(ctx, dep); err != nil {
		return fmt.Errorf("updating Deployment %s: %w", target, err)
	}
	return nil
}

// mergeEnv overwrites matching variables (clearing any valueFrom indirection),
// appends unknown keys and leaves everything else untouched.
func mergeEnv(existing []corev1.EnvVar, mappings []EnvMapping) []corev1.EnvVar {
	byKey := make(map[string]string, len(mappings))
	for _, m := range mappings {
		byKey[m.Key] = m.Image
	}

	merged := make([]corev1.EnvVar, 0, len(existing)+len(mappings))
	seen := make(map[string]bool, len(existing))
	for _, env := range existing {
		if image, ok := byKey[env.Name]; ok {
			env.Value = image
			env.ValueFrom = nil
		}
		seen[env.Name] = true
		merged = append(merged, env)
	}

	for _, m := range mappings {
		if !seen[m.Key] {
			merged = append(merged, corev1.EnvVar{Name: m.Key, Value: m.Image})
		}
	}
	return merged
}
