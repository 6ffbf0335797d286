// Package config loads the static component registry mapping each component
// to its source repository, build inputs and image-to-env-var wiring.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Build systems understood by the build coordinator.
const (
	BuildSystemKo     = "ko"
	BuildSystemDocker = "docker"
)

// Component describes how a single component is built and wired into the
// operator. Loaded once per run, read-only afterwards.
type Component struct {
	// Repo is the upstream source repository URL.
	Repo string `json:"repo"`
	// ImportPaths are the ko build targets, e.g. "./cmd/controller".
	ImportPaths []string `json:"importPaths,omitempty"`
	// Images maps a short image name (e.g. "controller") to the IMAGE_ env
	// variable the operator reads for it.
	Images map[string]string `json:"images"`
	// BuildSystem is "ko" (default when empty) or "docker".
	BuildSystem string `json:"buildSystem,omitempty"`
	// InstallerSetPrefix overrides the component name when matching
	// TektonInstallerSets, for components whose internal slug differs.
	InstallerSetPrefix string `json:"installerSetPrefix,omitempty"`
}

// Config keys are component names.
type Config map[string]Component

// Load reads the component registry from a YAML file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath is where the component registry lives relative to the
// working directory.
func DefaultPath() string {
	return "config/components.yaml"
}
