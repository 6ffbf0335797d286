// Package deploy forces a running operator to adopt freshly built images:
// map build output to the operator's environment contract, patch the live
// controller workload, invalidate its derived installer sets and wait for
// the cluster to converge.
package deploy

import (
	"fmt"

	"github.com/openshift-pipelines/streamstress/internal/build"
	"github.com/openshift-pipelines/streamstress/internal/config"
)

// EnvMapping binds one operator environment variable to an image reference.
type EnvMapping struct {
	Key   string
	Image string
}

// BuildMappings joins built images against the component's image-to-env-key
// map. All-or-nothing: a built image without a declared key fails the whole
// mapping so a half-wired deploy can never happen.
func BuildMappings(cfg config.Config, component, registry string, images []build.Image) ([]EnvMapping, error) {
	comp, ok := cfg[component]
	if !ok {
		return nil, fmt.Errorf("component %q not found in configuration", component)
	}

	mappings := make([]EnvMapping, 0, len(images))
	for _, img := range images {
		key, ok := comp.Images[img.Name]
		if !ok {
			return nil, fmt.Errorf(
				"no env var mapping for built image %q in component %q", img.Name, component)
		}
		mappings = append(mappings, EnvMapping{
			Key:   key,
			Image: registry + "/" + img.Name,
		})
	}

	if len(mappings) == 0 {
		return nil, fmt.Errorf("no image mappings produced for component %q", component)
	}
	return mappings, nil
}

// MappingTable renders the env-var-to-image listing as rows for display.
func MappingTable(mappings []EnvMapping) [][]string {
	rows := make([][]string, 0, len(mappings)+1)
	rows = append(rows, []string{"ENV VAR", "IMAGE"})
	for _, m := range mappings {
		rows = append(rows, []string{m.Key, m.Image})
	}
	return rows
}
