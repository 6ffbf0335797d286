package build

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/openshift-pipelines/streamstress/internal/config"
	"github.com/openshift-pipelines/streamstress/internal/shell"
)

// Builder turns a checked-out source tree into pushed images.
type Builder interface {
	Build(ctx context.Context, dir, registry string, comp config.Component) ([]Image, error)
}

// KoBuilder builds Go components with ko, one image per import path.
type KoBuilder struct {
	Shell shell.Runner
}

var _ Builder = KoBuilder{}

func (b KoBuilder) Build(ctx context.Context, dir, registry string, comp config.Component) ([]Image, error) {
	if len(comp.ImportPaths) == 0 {
		return nil, fmt.Errorf("no import paths configured")
	}

	sh := b.Shell.WithDir(dir).WithEnv(
		"KO_DOCKER_REPO="+registry,
		"GOFLAGS=-mod=vendor",
	)

	args := []string{"build", "--base-import-paths", "--sbom=none"}
	args = append(args, comp.ImportPaths...)

	res, err := sh.Run(ctx, "ko", args...)
	if err != nil {
		return nil, fmt.Errorf("ko build: %w", err)
	}
	return imagesFromKoOutput(comp.ImportPaths, registry, res.Stdout), nil
}

// imagesFromKoOutput pairs every import path with the pinned pullspec ko
// printed for it. With --base-import-paths the image name is the last path
// segment. A pullspec missing from the output degrades to the tag form.
func imagesFromKoOutput(importPaths []string, registry, stdout string) []Image {
	lines := strings.Fields(stdout)

	images := make([]Image, 0, len(importPaths))
	for _, p := range importPaths {
		name := path.Base(p)

		pullSpec := registry + "/" + name
		for _, line := range lines {
			if strings.Contains(line, "/"+name+"@sha256:") {
				pullSpec = line
				break
			}
		}
		images = append(images, Image{Name: name, PullSpec: pullSpec})
	}
	return images
}

// ContainerBuilder builds components that ship a Dockerfile instead of Go
// import paths. Prefers podman, falls back to docker when podman is absent.
type ContainerBuilder struct {
	Shell shell.Runner
}

var _ Builder = ContainerBuilder{}

func (b ContainerBuilder) Build(ctx context.Context, dir, registry string, comp config.Component) ([]Image, error) {
	engine := "podman"
	if !b.Shell.Available(ctx, "podman", "--version") {
		engine = "docker"
	}

	names := make([]string, 0, len(comp.Images))
	for name := range comp.Images {
		names = append(names, name)
	}
	sort.Strings(names)

	in := b.Shell.WithDir(dir)
	images := make([]Image, 0, len(names))
	for _, name := range names {
		tag := registry + "/" + name

		if _, err := in.Run(ctx, engine, "build", "-t", tag, "."); err != nil {
			return nil, fmt.Errorf("%s build of %s: %w", engine, name, err)
		}
		if _, err := b.Shell.Run(ctx, engine, "push", tag, "--tls-verify=false"); err != nil {
			return nil, fmt.Errorf("%s push of %s: %w", engine, name, err)
		}
		images = append(images, Image{Name: name, PullSpec: tag})
	}
	return images, nil
}
