package buildcmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openshift-pipelines/streamstress/internal/build"
	"github.com/openshift-pipelines/streamstress/internal/cluster"
	"github.com/openshift-pipelines/streamstress/internal/components"
	"github.com/openshift-pipelines/streamstress/internal/config"
	"github.com/openshift-pipelines/streamstress/internal/progress"
	"github.com/openshift-pipelines/streamstress/internal/registry"
	"github.com/openshift-pipelines/streamstress/internal/shell"
)

func NewCmd() *cobra.Command {
	const (
		buildUse   = "build [component[:ref],...]"
		buildShort = "Build component images into the cluster registry"
		buildLong  = "Clones the requested components at the given refs, builds their images " +
			"and pushes them to the cluster's internal registry. " +
			"Without arguments every known component is built from its default branch."
	)

	cmd := &cobra.Command{
		Use:   buildUse,
		Short: buildShort,
		Long:  buildLong,
		Args:  cobra.MaximumNArgs(1),
	}

	var opts Options

	opts.AddFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		specs, err := opts.Specs(args)
		if err != nil {
			return err
		}

		outcomes, err := RunBuild(cmd, specs, opts)
		if err != nil {
			return err
		}
		return Report(cmd, outcomes)
	}

	return cmd
}

// RunBuild resolves the target registry, logs in and builds every spec.
// Shared with the deploy command, which continues with the outcomes.
func RunBuild(cmd *cobra.Command, specs []components.Spec, opts Options) ([]build.Outcome, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.ConfigPath())
	if err != nil {
		return nil, err
	}

	c, err := cluster.NewClient()
	if err != nil {
		return nil, err
	}

	var sh shell.Runner

	var route string
	err = progress.Stage("logging in to cluster registry", func() error {
		route, err = registry.RouteAddress(ctx, c)
		if err != nil {
			return err
		}
		return registry.Login(ctx, sh, route)
	})
	if err != nil {
		return nil, err
	}

	// Spinners only on a real terminal; in-cluster runs and piped output
	// get the plain outcome report instead.
	var reporter progress.Reporter = progress.Discard
	if progress.Interactive(cmd.OutOrStdout()) {
		spinners := progress.NewMultiSpinner()
		defer spinners.Stop()
		reporter = spinners
	}

	coord := build.NewCoordinator(cfg, route+"/"+registry.DefaultNamespace, sh, reporter)
	coord.ExternalRegistry = opts.ExternalRegistry
	return coord.BuildAll(ctx, specs), nil
}

// Report prints one row per outcome and fails when any build failed.
func Report(cmd *cobra.Command, outcomes []build.Outcome) error {
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Component < outcomes[j].Component
	})

	rows := pterm.TableData{{"Component", "Images", "Elapsed", "Status"}}
	var failed []string
	for _, out := range outcomes {
		status := pterm.Green("ok")
		if out.Failed() {
			status = pterm.Red(out.Err.Error())
			failed = append(failed, out.Component)
		}
		names := make([]string, 0, len(out.Images))
		for _, img := range out.Images {
			names = append(names, img.Name)
		}
		rows = append(rows, []string{
			out.Component,
			strings.Join(names, ", "),
			out.Elapsed.Round(time.Second).String(),
			status,
		})
	}
	if err := pterm.DefaultTable.
		WithWriter(cmd.OutOrStdout()).
		WithHasHeader(true).
		WithData(rows).
		Render(); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("build failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

// Options carries the flags shared by the build and deploy commands.
type Options struct {
	Config           string
	AsOfDate         string
	ExternalRegistry string
}

func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVarP(
		&o.Config,
		"config",
		"c",
		"",
		"Path to the component registry file. Defaults to config/components.yaml.",
	)
	flags.StringVar(
		&o.AsOfDate,
		"as-of-date",
		"",
		"Build components without an explicit ref at the last commit on or before this date (YYYY-MM-DD).",
	)
	flags.StringVar(
		&o.ExternalRegistry,
		"external-registry",
		"",
		"Also push built images to this registry, pinned by digest.",
	)
}

func (o *Options) ConfigPath() string {
	if o.Config != "" {
		return o.Config
	}
	return config.DefaultPath()
}

// Specs parses the positional component list and applies the as-of date.
func (o *Options) Specs(args []string) ([]components.Spec, error) {
	specs := components.DefaultSpecs()
	if len(args) == 1 {
		var err error
		specs, err = components.ParseSpecs(args[0])
		if err != nil {
			return nil, err
		}
	}
	if o.AsOfDate != "" {
		if err := components.ValidateDate(o.AsOfDate); err != nil {
			return nil, err
		}
		components.ApplyAsOfDate(specs, o.AsOfDate)
	}
	return specs, nil
}
