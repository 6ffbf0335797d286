package setup

import (
	"context"
	"fmt"

	imageregistryv1 "github.com/openshift/api/imageregistry/v1"
	operatorv1 "github.com/openshift/api/operator/v1"
	operatorsv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/cluster"
	"github.com/openshift-pipelines/streamstress/internal/registry"
	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

const (
	subscriptionChannel = "latest"
	subscriptionPackage = "openshift-pipelines-operator-rh"
	catalogSource       = "redhat-operators"
	catalogSourceNS     = "openshift-marketplace"
)

// ensureRegistryConfig enables the default route on the cluster image
// registry and gives it ephemeral storage when none is configured. Fields
// already set by an administrator are left alone.
func (b *Bootstrapper) ensureRegistryConfig(ctx context.Context) error {
	cfg := &imageregistryv1.Config{}
	if err := b.Client.Get(ctx, client.ObjectKey{Name: "cluster"}, cfg); err != nil {
		return fmt.Errorf("getting imageregistry config: %w", err)
	}

	changed := false
	if cfg.Spec.ManagementState == operatorv1.Removed {
		cfg.Spec.ManagementState = operatorv1.Managed
		changed = true
	}
	if !cfg.Spec.DefaultRoute {
		cfg.Spec.DefaultRoute = true
		changed = true
	}
	if cfg.Spec.Storage == (imageregistryv1.ImageRegistryConfigStorage{}) {
		cfg.Spec.Storage.EmptyDir = &imageregistryv1.ImageRegistryConfigStorageEmptyDir{}
		changed = true
	}
	if !changed {
		return nil
	}
	if err := b.Client.Update(ctx, cfg); err != nil {
		return fmt.Errorf("updating imageregistry config: %w", err)
	}
	return nil
}

// waitForRegistryRoute polls until the registry's default route is admitted.
func (b *Bootstrapper) waitForRegistryRoute(ctx context.Context) error {
	err := wait.PollUntilContextTimeout(ctx,
		b.RouteWaitInterval, b.RouteWaitTimeout, true,
		func(ctx context.Context) (bool, error) {
			_, err := registry.RouteAddress(ctx, b.Client)
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			if err != nil {
				// Route exists but is not admitted yet, or transient.
				return false, nil
			}
			return true, nil
		})
	if err != nil {
		return fmt.Errorf("registry route not available within %s: %w", b.RouteWaitTimeout, err)
	}
	return nil
}

// ensureNamespaceRBAC creates the build namespace and grants cluster-wide
// anonymous pull access to it.
func (b *Bootstrapper) ensureNamespaceRBAC(ctx context.Context) error {
	if err := cluster.EnsureNamespace(ctx, b.Client, registry.DefaultNamespace); err != nil {
		return err
	}
	return cluster.EnsureImagePullRBAC(ctx, b.Client, registry.DefaultNamespace)
}

// ensureOperatorInstalled creates the operator subscription unless the
// operator is already installed. A present TektonConfig counts as installed
// even without a subscription: manual and disconnected installs have none,
// and creating one next to them would fight the existing install. An
// existing subscription is never modified: the channel and approval mode
// may have been chosen deliberately.
func (b *Bootstrapper) ensureOperatorInstalled(ctx context.Context) error {
	cfg := tekton.NewTektonConfig()
	if err := b.Client.Get(ctx, client.ObjectKeyFromObject(cfg), cfg); err == nil {
		return nil
	}

	existing := &operatorsv1alpha1.Subscription{}
	err := b.Client.Get(ctx, client.ObjectKey{
		Namespace: tekton.SubscriptionNamespace, Name: tekton.SubscriptionName,
	}, existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("checking subscription: %w", err)
	}

	sub := &operatorsv1alpha1.Subscription{
		ObjectMeta: metav1.ObjectMeta{
			Name:      tekton.SubscriptionName,
			Namespace: tekton.SubscriptionNamespace,
		},
		Spec: &operatorsv1alpha1.SubscriptionSpec{
			Channel:                subscriptionChannel,
			Package:                subscriptionPackage,
			CatalogSource:          catalogSource,
			CatalogSourceNamespace: catalogSourceNS,
			InstallPlanApproval:    operatorsv1alpha1.ApprovalAutomatic,
		},
	}
	if err := b.Client.Create(ctx, sub); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("creating subscription: %w", err)
	}
	return nil
}

// waitForOperatorReady polls until one of the known operator deployments
// reports an Available condition.
func (b *Bootstrapper) waitForOperatorReady(ctx context.Context) error {
	err := wait.PollUntilContextTimeout(ctx,
		b.ReadyWaitInterval, b.ReadyWaitTimeout, true,
		func(ctx context.Context) (bool, error) {
			return b.operatorAvailable(ctx), nil
		})
	if err != nil {
		return fmt.Errorf("operator not ready within %s: %w", b.ReadyWaitTimeout, err)
	}
	return nil
}

func (b *Bootstrapper) operatorAvailable(ctx context.Context) bool {
	for _, ns := range tekton.OperatorNamespaces {
		for _, name := range tekton.OperatorDeploymentNames {
			deploy := &appsv1.Deployment{}
			err := b.Client.Get(ctx, client.ObjectKey{Namespace: ns, Name: name}, deploy)
			if err == nil && deploymentAvailable(deploy) {
				return true
			}
		}
		for _, selector := range tekton.OperatorLabelSelectors {
			list := &appsv1.DeploymentList{}
			err := b.Client.List(ctx, list,
				client.InNamespace(ns),
				client.MatchingLabelsSelector{Selector: labels.SelectorFromSet(selector)})
			if err != nil {
				continue
			}
			for i := range list.Items {
				if deploymentAvailable(&list.Items[i]) {
					return true
				}
			}
		}
	}
	return false
}

func deploymentAvailable(deploy *appsv1.Deployment) bool {
	for _, cond := range deploy.Status.Conditions {
		if cond.Type == appsv1.DeploymentAvailable &&
			cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// ensureTektonConfig creates the baseline TektonConfig. The create is
// retried because the CRD is registered asynchronously after the operator
// starts; an existing config, including one the operator auto-created, is
// left untouched.
func (b *Bootstrapper) ensureTektonConfig(ctx context.Context) error {
	return b.retryCreate(ctx, func() error {
		cfg := tekton.NewTektonConfig()
		err := b.Client.Create(ctx, cfg)
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return err
	})
}
