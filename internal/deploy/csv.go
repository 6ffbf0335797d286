package deploy

import (
	"context"
	"fmt"
	"strings"

	operatorsv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

// csvNameFragment identifies the operator's ClusterServiceVersion.
const csvNameFragment = "openshift-pipelines-operator"

// CSVEnvPatcher merges image mappings into the ClusterServiceVersion's
// install strategy and lets the lifecycle manager propagate them to the
// workload. Alternative to DeploymentEnvPatcher for platform versions where
// direct workload edits are reverted.
type CSVEnvPatcher struct {
	Client client.Client
}

var _ EnvPatcher = CSVEnvPatcher{}

func (p CSVEnvPatcher) Name() string { return "csv" }

func (p CSVEnvPatcher) PatchEnv(ctx context.Context, target Target, mappings []EnvMapping) error {
	csv, err := p.findCSV(ctx, target.Namespace)
	if err != nil {
		return err
	}

	specs := csv.Spec.InstallStrategy.StrategySpec.DeploymentSpecs
	depIdx := -1
	for i := range specs {
		if specs[i].Name == target.Name {
			depIdx = i
			break
		}
	}
	if depIdx < 0 {
		return fmt.Errorf("deployment %q not found in CSV %s", target.Name, csv.Name)
	}

	containers := specs[depIdx].Spec.Template.Spec.Containers
	conIdx := -1
	for i := range containers {
		if containers[i].Name == tekton.LifecycleContainerName {
			conIdx = i
			break
		}
	}
	if conIdx < 0 {
		return fmt.Errorf(
			"container %q not found in CSV %s", tekton.LifecycleContainerName, csv.Name)
	}

	containers[conIdx].Env = mergeEnv(containers[conIdx].Env, mappings)

	if err := p.Client.Update(ctx, csv); err != nil {
		return fmt.Errorf("updating CSV %s: %w", csv.Name, err)
	}
	return nil
}

func (p CSVEnvPatcher) findCSV(ctx context.Context, namespace string) (*operatorsv1alpha1.ClusterServiceVersion, error) {
	list := &operatorsv1alpha1.ClusterServiceVersionList{}
	if err := p.Client.List(ctx, list, client.InNamespace(namespace)); err != nil {
		return nil, fmt.Errorf("listing CSVs in %s: %w", namespace, err)
	}
	for i := range list.Items {
		if strings.Contains(list.Items[i].Name, csvNameFragment) {
			return &list.Items[i], nil
		}
	}
	return nil, fmt.Errorf("no %s CSV found in namespace %s", csvNameFragment, namespace)
}
