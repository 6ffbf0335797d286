package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openshift-pipelines/streamstress/internal/components"
	"github.com/openshift-pipelines/streamstress/internal/config"
	"github.com/openshift-pipelines/streamstress/internal/progress"
	"github.com/openshift-pipelines/streamstress/internal/registry"
	"github.com/openshift-pipelines/streamstress/internal/shell"
)

// Coordinator drives N component pipelines concurrently. Pipelines share
// nothing but read-only configuration; one failing never cancels another.
type Coordinator struct {
	Configs  config.Config
	Registry string
	// ExternalRegistry mirrors built images out of the cluster when set.
	ExternalRegistry string
	Reporter         progress.Reporter

	// Seams for tests; defaulted by NewCoordinator.
	Clone     func(ctx context.Context, repoURL, dest, ref string) error
	CloneAsOf func(ctx context.Context, repoURL, dest, date string) error
	Builders  map[string]Builder
	Push      func(ctx context.Context, srcRef, dstRef string) (string, error)
	TempDir   func(component string) (string, error)
}

// NewCoordinator wires a coordinator with the real clone, build and push
// implementations.
func NewCoordinator(cfg config.Config, reg string, sh shell.Runner, rep progress.Reporter) *Coordinator {
	if rep == nil {
		rep = progress.Discard
	}
	return &Coordinator{
		Configs:  cfg,
		Registry: reg,
		Reporter: rep,
		Clone: func(ctx context.Context, repoURL, dest, ref string) error {
			return components.CloneWithRef(ctx, sh, repoURL, dest, ref)
		},
		CloneAsOf: func(ctx context.Context, repoURL, dest, date string) error {
			return components.CloneAsOf(ctx, sh, repoURL, dest, date)
		},
		Builders: map[string]Builder{
			config.BuildSystemKo:     KoBuilder{Shell: sh},
			config.BuildSystemDocker: ContainerBuilder{Shell: sh},
		},
		Push: registry.PushExternal,
		TempDir: func(component string) (string, error) {
			return os.MkdirTemp("", "streamstress-"+component+"-")
		},
	}
}

// BuildAll runs one pipeline per spec and returns exactly one outcome per
// spec, in completion order.
func (c *Coordinator) BuildAll(ctx context.Context, specs []components.Spec) []Outcome {
	results := make(chan Outcome, len(specs))

	for _, spec := range specs {
		spec := spec
		c.Reporter.Phase(spec.Name, progress.PhaseQueued, "")
		go func() {
			results <- c.runPipeline(ctx, spec)
		}()
	}

	outcomes := make([]Outcome, 0, len(specs))
	for range specs {
		outcomes = append(outcomes, <-results)
	}
	return outcomes
}

func (c *Coordinator) runPipeline(ctx context.Context, spec components.Spec) Outcome {
	start := time.Now()
	fail := func(err error) Outcome {
		c.Reporter.Phase(spec.Name, progress.PhaseFailed, err.Error())
		return Outcome{Component: spec.Name, Err: err, Elapsed: time.Since(start)}
	}

	comp, ok := c.Configs[spec.Name]
	if !ok {
		return fail(fmt.Errorf("component %q not in configuration", spec.Name))
	}

	dir, err := c.TempDir(spec.Name)
	if err != nil {
		return fail(fmt.Errorf("creating workspace: %w", err))
	}
	defer os.RemoveAll(dir)

	c.Reporter.Phase(spec.Name, progress.PhaseCloning, comp.Repo)
	if spec.Ref == "" && spec.AsOfDate != "" {
		if err := c.CloneAsOf(ctx, comp.Repo, dir, spec.AsOfDate); err != nil {
			return fail(err)
		}
	} else if err := c.Clone(ctx, comp.Repo, dir, spec.Ref); err != nil {
		return fail(err)
	}

	c.Reporter.Phase(spec.Name, progress.PhaseBuilding, "")
	builder, ok := c.Builders[buildSystem(comp)]
	if !ok {
		return fail(fmt.Errorf("unknown build system %q", comp.BuildSystem))
	}
	images, err := builder.Build(ctx, dir, c.Registry, comp)
	if err != nil {
		return fail(err)
	}

	if c.ExternalRegistry != "" {
		c.Reporter.Phase(spec.Name, progress.PhasePushing, c.ExternalRegistry)
		for i, img := range images {
			pinned, err := c.Push(ctx, img.PullSpec, c.ExternalRegistry+"/"+img.Name)
			if err != nil {
				return fail(fmt.Errorf("pushing %s: %w", img.Name, err))
			}
			images[i].PullSpec = pinned
		}
	}

	c.Reporter.Phase(spec.Name, progress.PhaseDone, fmt.Sprintf("%d images", len(images)))
	return Outcome{Component: spec.Name, Images: images, Elapsed: time.Since(start)}
}

func buildSystem(comp config.Component) string {
	if comp.BuildSystem == "" {
		return config.BuildSystemKo
	}
	return comp.BuildSystem
}
