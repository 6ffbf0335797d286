package cluster

import (
	"context"
	"testing"

	routev1 "github.com/openshift/api/route/v1"
	operatorsv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func TestNewSchemeCoversAllTouchedGroups(t *testing.T) {
	t.Parallel()

	scheme, err := NewScheme()
	require.NoError(t, err)

	assert.True(t, scheme.Recognizes(appsv1.SchemeGroupVersion.WithKind("Deployment")))
	assert.True(t, scheme.Recognizes(routev1.GroupVersion.WithKind("Route")))
	assert.True(t, scheme.Recognizes(operatorsv1alpha1.SchemeGroupVersion.WithKind("Subscription")))
}

func TestEnsureNamespaceIdempotent(t *testing.T) {
	t.Parallel()

	scheme, err := NewScheme()
	require.NoError(t, err)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()

	require.NoError(t, EnsureNamespace(context.Background(), c, "tekton-upstream"))
	require.NoError(t, EnsureNamespace(context.Background(), c, "tekton-upstream"))
}

func TestEnsureImagePullRBACIdempotent(t *testing.T) {
	t.Parallel()

	scheme, err := NewScheme()
	require.NoError(t, err)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()

	require.NoError(t, EnsureImagePullRBAC(context.Background(), c, "tekton-upstream"))
	require.NoError(t, EnsureImagePullRBAC(context.Background(), c, "tekton-upstream"))
}
