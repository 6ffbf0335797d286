package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

// installerSetPrefixes are the controller's name patterns for the derived
// object bundles belonging to one component.
func installerSetPrefixes(prefix string) []string {
	return []string{
		prefix + "-main-deployment-",
		prefix + "-main-static-",
		prefix + "-post-",
		prefix + "-pre-",
	}
}

// Invalidate deletes the component's TektonInstallerSets cluster-wide. The
// controller reads the patched environment only when it (re)creates these
// bundles, so deleting them is what makes new images take effect.
//
// Deletions are independent: a failed delete is logged and counted out, the
// rest proceed. Returns the number successfully deleted.
func Invalidate(ctx context.Context, c client.Client, component, prefixOverride string) (int, error) {
	log := logr.FromContextOrDiscard(ctx)

	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(tekton.InstallerSetListGVK)
	if err := c.List(ctx, list); err != nil {
		return 0, fmt.Errorf("listing TektonInstallerSets: %w", err)
	}

	prefix := component
	if prefixOverride != "" {
		prefix = prefixOverride
	}
	prefixes := installerSetPrefixes(prefix)

	deleted := 0
	for i := range list.Items {
		item := &list.Items[i]
		if !matchesAny(item.GetName(), prefixes) {
			continue
		}
		if err := c.Delete(ctx, item); err != nil {
			log.Info("failed to delete TektonInstallerSet",
				"name", item.GetName(), "error", err.Error())
			continue
		}
		log.V(1).Info("deleted TektonInstallerSet", "name", item.GetName())
		deleted++
	}
	return deleted, nil
}

func matchesAny(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
