// Package tekton holds the cluster coordinates of the OpenShift Pipelines
// operator: the custom resource kinds it serves and the places its
// controller workload is known to live.
package tekton

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	// TektonConfigName is the singleton top-level custom resource.
	TektonConfigName = "config"

	// LifecycleContainerName identifies the env-var-carrying container in
	// the operator controller deployment.
	LifecycleContainerName = "openshift-pipelines-operator-lifecycle"

	// SubscriptionName / SubscriptionNamespace address the OLM subscription
	// installing the operator.
	SubscriptionName      = "openshift-pipelines-operator"
	SubscriptionNamespace = "openshift-operators"

	// PodPartOfSelector selects the component pods the operator manages.
	PodPartOfSelector = "app.kubernetes.io/part-of=tekton-pipelines"
)

var (
	TektonConfigGVK = schema.GroupVersionKind{
		Group: "operator.tekton.dev", Version: "v1alpha1", Kind: "TektonConfig",
	}
	TektonConfigListGVK = schema.GroupVersionKind{
		Group: "operator.tekton.dev", Version: "v1alpha1", Kind: "TektonConfigList",
	}
	InstallerSetGVK = schema.GroupVersionKind{
		Group: "operator.tekton.dev", Version: "v1alpha1", Kind: "TektonInstallerSet",
	}
	InstallerSetListGVK = schema.GroupVersionKind{
		Group: "operator.tekton.dev", Version: "v1alpha1", Kind: "TektonInstallerSetList",
	}

	// OperatorNamespaces are probed in order when locating the controller.
	OperatorNamespaces = []string{
		"openshift-pipelines",
		"openshift-operators",
		"tekton-pipelines",
	}

	// OperatorDeploymentNames are the known controller deployment names.
	OperatorDeploymentNames = []string{
		"openshift-pipelines-operator",
		"tekton-operator",
	}

	// OperatorLabelSelectors are the fallback selectors for the controller.
	OperatorLabelSelectors = []map[string]string{
		{"app.kubernetes.io/name": "openshift-pipelines-operator"},
		{"app": "tekton-operator"},
	}

	// ComponentPodNamespaces are where managed component pods run.
	ComponentPodNamespaces = []string{"openshift-pipelines", "tekton-pipelines"}
)

// NewTektonConfig returns the baseline TektonConfig custom resource.
func NewTektonConfig() *unstructured.Unstructured {
	tc := &unstructured.Unstructured{}
	tc.SetGroupVersionKind(TektonConfigGVK)
	tc.SetName(TektonConfigName)
	_ = unstructured.SetNestedMap(tc.Object, map[string]any{
		"targetNamespace": "openshift-pipelines",
		"profile":         "all",
	}, "spec")
	return tc
}

// IsReady reports whether the object's status carries a Ready=True condition.
func IsReady(obj *unstructured.Unstructured) bool {
	return hasCondition(obj, "Ready")
}

func hasCondition(obj *unstructured.Unstructured, condType string) bool {
	conditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil || !found {
		return false
	}
	for _, c := range conditions {
		cond, ok := c.(map[string]any)
		if !ok {
			continue
		}
		t, _, _ := unstructured.NestedString(cond, "type")
		s, _, _ := unstructured.NestedString(cond, "status")
		if t == condType && s == "True" {
			return true
		}
	}
	return false
}
