package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/openshift-pipelines/streamstress/internal/tekton"
)

func operatorDeployment(namespace, name string, labels map[string]string, env ...corev1.EnvVar) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name: tekton.LifecycleContainerName,
						Env:  env,
					}},
				},
			},
		},
	}
}

func TestLocate(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		Objects  []client.Object
		Expected Target
		WantErr  bool
	}{
		"known name in known namespace": {
			Objects: []client.Object{
				operatorDeployment("openshift-operators", "openshift-pipelines-operator", nil),
			},
			Expected: Target{Namespace: "openshift-operators", Name: "openshift-pipelines-operator"},
		},
		"upstream name in upstream namespace": {
			Objects: []client.Object{
				operatorDeployment("tekton-pipelines", "tekton-operator", nil),
			},
			Expected: Target{Namespace: "tekton-pipelines", Name: "tekton-operator"},
		},
		"label selector fallback for renamed deployment": {
			Objects: []client.Object{
				operatorDeployment("openshift-operators", "openshift-pipelines-operator-v1-2-3",
					map[string]string{"app.kubernetes.io/name": "openshift-pipelines-operator"}),
			},
			Expected: Target{Namespace: "openshift-operators", Name: "openshift-pipelines-operator-v1-2-3"},
		},
		"nothing found lists candidates": {
			WantErr: true,
		},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := fake.NewClientBuilder().WithObjects(tc.Objects...).Build()

			target, err := Locate(context.Background(), c)
			if tc.WantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "openshift-pipelines-operator")
				assert.Contains(t, err.Error(), "tekton-operator")
				assert.Contains(t, err.Error(), "openshift-operators")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, target)
		})
	}
}

func TestDeploymentEnvPatcher(t *testing.T) {
	t.Parallel()

	target := Target{Namespace: "openshift-operators", Name: "openshift-pipelines-operator"}
	mappings := []EnvMapping{
		{Key: "IMAGE_PIPELINES_CONTROLLER", Image: "internal/controller"},
	}

	t.Run("overwrites matching key and clears valueFrom", func(t *testing.T) {
		t.Parallel()

		dep := operatorDeployment(target.Namespace, target.Name, nil,
			corev1.EnvVar{
				Name: "IMAGE_PIPELINES_CONTROLLER",
				ValueFrom: &corev1.EnvVarSource{
					FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
				},
			},
			corev1.EnvVar{Name: "WATCH_NAMESPACE", Value: "keep-me"},
		)
		c := fake.NewClientBuilder().WithObjects(dep).Build()

		require.NoError(t, DeploymentEnvPatcher{Client: c}.PatchEnv(
			context.Background(), target, mappings))

		patched := &appsv1.Deployment{}
		require.NoError(t, c.Get(context.Background(),
			client.ObjectKey{Namespace: target.Namespace, Name: target.Name}, patched))

		env := patched.Spec.Template.Spec.Containers[0].Env
		require.Len(t, env, 2)
		assert.Equal(t, "internal/controller", env[0].Value)
		assert.Nil(t, env[0].ValueFrom)
		assert.Equal(t, corev1.EnvVar{Name: "WATCH_NAMESPACE", Value: "keep-me"}, env[1])
	})

	t.Run("appends unknown key", func(t *testing.T) {
		t.Parallel()

		dep := operatorDeployment(target.Namespace, target.Name, nil,
			corev1.EnvVar{Name: "WATCH_NAMESPACE", Value: "keep-me"})
		c := fake.NewClientBuilder().WithObjects(dep).Build()

		require.NoError(t, DeploymentEnvPatcher{Client: c}.PatchEnv(
			context.Background(), target, mappings))

		patched := &appsv1.Deployment{}
		require.NoError(t, c.Get(context.Background(),
			client.ObjectKey{Namespace: target.Namespace, Name: target.Name}, patched))

		env := patched.Spec.Template.Spec.Containers[0].Env
		require.Len(t, env, 2)
		assert.Equal(t, corev1.EnvVar{
			Name: "IMAGE_PIPELINES_CONTROLLER", Value: "internal/controller",
		}, env[1])
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		dep := operatorDeployment(target.Namespace, target.Name, nil)
		c := fake.NewClientBuilder().WithObjects(dep).Build()
		patcher := DeploymentEnvPatcher{Client: c}

		require.NoError(t, patcher.PatchEnv(context.Background(), target, mappings))
		require.NoError(t, patcher.PatchEnv(context.Background(), target, mappings))

		patched := &appsv1.Deployment{}
		require.NoError(t, c.Get(context.Background(),
			client.ObjectKey{Namespace: target.Namespace, Name: target.Name}, patched))
		assert.Len(t, patched.Spec.Template.Spec.Containers[0].Env, 1)
	})

	t.Run("missing lifecycle container", func(t *testing.T) {
		t.Parallel()

		dep := operatorDeployment(target.Namespace, target.Name, nil)
		dep.Spec.Template.Spec.Containers[0].Name = "something-else"
		c := fake.NewClientBuilder().WithObjects(dep).Build()

		err := DeploymentEnvPatcher{Client: c}.PatchEnv(context.Background(), target, mappings)
		require.Error(t, err)
		assert.Contains(t, err.Error(), tekton.LifecycleContainerName)
	})

	t.Run("deployment gone", func(t *testing.T) {
		t.Parallel()

		c := fake.NewClientBuilder().Build()

		err := DeploymentEnvPatcher{Client: c}.PatchEnv(context.Background(), target, mappings)
		require.Error(t, err)
	})
}
