// Package registry bridges the cluster-internal image registry to the build
// and push tooling: address discovery, authentication and reconciliation of
// the two on-disk credential store conventions.
package registry

import (
	"context"
	"fmt"
	"strings"

	routev1 "github.com/openshift/api/route/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift-pipelines/streamstress/internal/shell"
)

const (
	// DefaultNamespace holds the upstream images inside the cluster registry.
	DefaultNamespace = "tekton-upstream"

	// InternalHost is the in-cluster service address of the image registry.
	// Pods pull through this address, not the external route.
	InternalHost = "image-registry.openshift-image-registry.svc:5000"

	routeName      = "default-route"
	routeNamespace = "openshift-image-registry"
)

// exposeHint is printed whenever the registry route is missing.
const exposeHint = "is the registry exposed? Run: oc patch configs.imageregistry.operator.openshift.io/cluster " +
	`--patch '{"spec":{"defaultRoute":true}}' --type=merge`

// RouteAddress discovers the externally reachable host of the cluster
// image registry.
func RouteAddress(ctx context.Context, c client.Client) (string, error) {
	route := &routev1.Route{}
	key := client.ObjectKey{Namespace: routeNamespace, Name: routeName}
	if err := c.Get(ctx, key, route); err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("image registry route not found: %s", exposeHint)
		}
		return "", fmt.Errorf("getting image registry route: %w", err)
	}
	if route.Spec.Host == "" {
		return "", fmt.Errorf("image registry route has no host yet: %s", exposeHint)
	}
	return route.Spec.Host, nil
}

// Login authenticates the container tooling against the registry route using
// the caller's current cluster session token, then reconciles the credential
// stores so both ko and podman can push.
func Login(ctx context.Context, sh shell.Runner, route string) error {
	whoami, err := sh.Run(ctx, "oc", "whoami", "-t")
	if err != nil {
		return fmt.Errorf("reading session token: %w", err)
	}
	token := strings.TrimSpace(whoami.Stdout)

	_, err = sh.Run(ctx, "oc", "registry", "login",
		"--registry="+route, "--token="+token, "--insecure=true")
	if err != nil {
		return fmt.Errorf("logging in to registry %s: %w", route, err)
	}

	if err := SyncDockerConfig(); err != nil {
		return fmt.Errorf("reconciling credential stores: %w", err)
	}
	return nil
}

// ToInternal rewrites an external route address to the in-cluster service
// address, preserving the namespace path and defaulting it when absent.
func ToInternal(registry string) string {
	if strings.HasPrefix(registry, InternalHost) {
		if !strings.Contains(registry, "/") {
			return InternalHost + "/" + DefaultNamespace
		}
		return registry
	}
	if idx := strings.Index(registry, "/"); idx >= 0 {
		return InternalHost + registry[idx:]
	}
	return InternalHost + "/" + DefaultNamespace
}
