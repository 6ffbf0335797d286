package cluster

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ImagePullBindingName is the RoleBinding granting registry pull access.
const ImagePullBindingName = "image-puller-all-authenticated"

// EnsureNamespace creates the namespace when it does not exist yet.
func EnsureNamespace(ctx context.Context, c client.Client, name string) error {
	ns := &corev1.Namespace{}
	err := c.Get(ctx, client.ObjectKey{Name: name}, ns)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("checking namespace %s: %w", name, err)
	}

	ns = &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if err := c.Create(ctx, ns); err != nil {
		return fmt.Errorf("creating namespace %s: %w", name, err)
	}
	return nil
}

// EnsureImagePullRBAC grants image-pull rights on the namespace to all
// authenticated users. Component pods run init containers pulled from this
// namespace in arbitrary user namespaces, so pull access has to be broad.
// Idempotent: an existing binding is left untouched.
func EnsureImagePullRBAC(ctx context.Context, c client.Client, namespace string) error {
	existing := &rbacv1.RoleBinding{}
	key := client.ObjectKey{Namespace: namespace, Name: ImagePullBindingName}
	err := c.Get(ctx, key, existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("checking RoleBinding %s/%s: %w", namespace, ImagePullBindingName, err)
	}

	rb := &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ImagePullBindingName,
			Namespace: namespace,
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     "system:image-puller",
		},
		Subjects: []rbacv1.Subject{{
			APIGroup: rbacv1.GroupName,
			Kind:     rbacv1.GroupKind,
			Name:     "system:authenticated",
		}},
	}
	if err := c.Create(ctx, rb); err != nil {
		return fmt.Errorf("creating RoleBinding %s/%s: %w", namespace, ImagePullBindingName, err)
	}
	return nil
}
