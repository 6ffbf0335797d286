package incluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/openshift-pipelines/streamstress/internal/shell"
	"github.com/openshift-pipelines/streamstress/internal/version"
)

// ImagePublisher builds the CLI's own container image and pushes it to the
// cluster registry so the in-cluster Job can pull it.
type ImagePublisher struct {
	Shell shell.Runner

	// ContextDir is the build context holding the Containerfile.
	// Defaults to the current directory.
	ContextDir string

	engine string
}

// Publish builds and pushes the CLI image, returning its pull spec. Images
// are tagged by release version so repeated runs of the same build skip the
// push when the tag is already present in the registry.
func (p *ImagePublisher) Publish(ctx context.Context, registryHost string) (string, error) {
	log := logr.FromContextOrDiscard(ctx)

	engine, err := p.containerEngine(ctx)
	if err != nil {
		return "", err
	}

	tag := fmt.Sprintf("%s/streamstress:%s", registryHost, versionTag())
	if !strings.HasSuffix(tag, ":dev") && p.imagePushed(ctx, engine, tag) {
		log.V(1).Info("cli image already in registry", "image", tag)
		return tag, nil
	}

	dir := p.ContextDir
	if dir == "" {
		dir = "."
	}
	sh := p.Shell.WithDir(dir)

	if _, err := sh.Run(ctx, engine, "build", "-t", tag, "."); err != nil {
		return "", fmt.Errorf("building cli image: %w", err)
	}
	if _, err := sh.Run(ctx, engine, "push", tag, "--tls-verify=false"); err != nil {
		return "", fmt.Errorf("pushing cli image: %w", err)
	}
	log.Info("pushed cli image", "image", tag)
	return tag, nil
}

// containerEngine prefers podman, falling back to docker.
func (p *ImagePublisher) containerEngine(ctx context.Context) (string, error) {
	if p.engine != "" {
		return p.engine, nil
	}
	for _, candidate := range []string{"podman", "docker"} {
		if p.Shell.Available(ctx, candidate, "--version") {
			p.engine = candidate
			return candidate, nil
		}
	}
	return "", fmt.Errorf("neither podman nor docker found on PATH")
}

// imagePushed checks whether the tag already exists in the registry. Any
// probe failure means rebuild, which is always safe.
func (p *ImagePublisher) imagePushed(ctx context.Context, engine, tag string) bool {
	if engine != "podman" {
		return false
	}
	res, err := p.Shell.RunUnchecked(ctx,
		engine, "manifest", "inspect", "--tls-verify=false", tag)
	return err == nil && res.ExitCode == 0
}

// versionTag converts the release version to a valid image tag. Development
// builds get a "dev" tag and are always rebuilt.
func versionTag() string {
	v := version.Get().Version
	if v == "" || strings.Contains(v, "devel") {
		return "dev"
	}
	return strings.ReplaceAll(v, "+", "-")
}
