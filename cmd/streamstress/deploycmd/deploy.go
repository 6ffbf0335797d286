package deploycmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openshift-pipelines/streamstress/cmd/streamstress/buildcmd"
	"github.com/openshift-pipelines/streamstress/internal/build"
	"github.com/openshift-pipelines/streamstress/internal/cluster"
	"github.com/openshift-pipelines/streamstress/internal/config"
	"github.com/openshift-pipelines/streamstress/internal/deploy"
	"github.com/openshift-pipelines/streamstress/internal/incluster"
	"github.com/openshift-pipelines/streamstress/internal/registry"
	"github.com/openshift-pipelines/streamstress/internal/shell"
)

func NewCmd() *cobra.Command {
	const (
		deployUse   = "deploy [component[:ref],...]"
		deployShort = "Build components and promote their images into the live operator"
		deployLong  = "Runs the full promotion: builds the requested components, rewrites their " +
			"images to the in-cluster registry, patches them into the operator's environment, " +
			"invalidates the matching installer sets and waits for the operator to reconverge."
	)

	cmd := &cobra.Command{
		Use:   deployUse,
		Short: deployShort,
		Long:  deployLong,
		Args:  cobra.MaximumNArgs(1),
	}

	var opts options

	opts.AddFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if opts.InCluster {
			return runRemote(cmd, args, opts)
		}

		specs, err := opts.Build.Specs(args)
		if err != nil {
			return err
		}

		outcomes, err := buildcmd.RunBuild(cmd, specs, opts.Build)
		if err != nil {
			return err
		}
		if err := buildcmd.Report(cmd, outcomes); err != nil {
			return err
		}

		return runDeploy(cmd, outcomes, opts)
	}

	return cmd
}

// runDeploy promotes every built component in turn. The operator workload is
// shared, so components deploy one at a time.
func runDeploy(cmd *cobra.Command, outcomes []build.Outcome, opts options) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Load(opts.Build.ConfigPath())
	if err != nil {
		return err
	}
	c, err := cluster.NewClient()
	if err != nil {
		return err
	}
	route, err := registry.RouteAddress(ctx, c)
	if err != nil {
		return err
	}
	reg := route + "/" + registry.DefaultNamespace

	orch := deploy.NewOrchestrator(c, cfg)
	if opts.PatchCSV {
		orch.Patcher = deploy.CSVEnvPatcher{Client: c}
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Component < outcomes[j].Component
	})

	var warnings []string
	for _, outcome := range outcomes {
		if outcome.Failed() {
			continue
		}

		res, err := orch.Run(ctx, outcome.Component, reg, outcome.Images)
		if err != nil {
			return fmt.Errorf("deploying %s: %w", outcome.Component, err)
		}

		fmt.Fprintf(out, "\n%s → %s (%d installer sets invalidated)\n",
			outcome.Component, res.Target, res.Invalidated)
		if err := pterm.DefaultTable.
			WithWriter(out).
			WithHasHeader(true).
			WithData(mappingRows(res.Mappings)).
			Render(); err != nil {
			return err
		}

		for _, w := range res.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", outcome.Component, w))
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintf(out, "\ncompleted with warnings:\n  %s\n",
			strings.Join(warnings, "\n  "))
	}
	return nil
}

func mappingRows(mappings []deploy.EnvMapping) pterm.TableData {
	rows := pterm.TableData{{"Env", "Image"}}
	for _, row := range deploy.MappingTable(mappings) {
		rows = append(rows, row)
	}
	return rows
}

// runRemote re-runs this deploy inside the cluster as a Job and follows its
// logs, so long builds survive the local session ending.
func runRemote(cmd *cobra.Command, args []string, opts options) error {
	ctx := cmd.Context()

	c, err := cluster.NewClient()
	if err != nil {
		return err
	}
	cs, err := cluster.NewClientset()
	if err != nil {
		return err
	}
	route, err := registry.RouteAddress(ctx, c)
	if err != nil {
		return err
	}
	var sh shell.Runner
	if err := registry.Login(ctx, sh, route); err != nil {
		return err
	}

	pub := incluster.ImagePublisher{Shell: sh}
	image, err := pub.Publish(ctx, route+"/"+registry.DefaultNamespace)
	if err != nil {
		return err
	}

	jobArgs := append([]string{"deploy"}, args...)
	if opts.Build.AsOfDate != "" {
		jobArgs = append(jobArgs, "--as-of-date", opts.Build.AsOfDate)
	}
	if opts.PatchCSV {
		jobArgs = append(jobArgs, "--csv")
	}

	exec := incluster.NewExecutor(c, cs, registry.ToInternal(image))
	return exec.Run(ctx, jobArgs, cmd.OutOrStdout())
}

type options struct {
	Build     buildcmd.Options
	PatchCSV  bool
	InCluster bool
}

func (o *options) AddFlags(flags *pflag.FlagSet) {
	o.Build.AddFlags(flags)
	flags.BoolVar(
		&o.PatchCSV,
		"csv",
		false,
		"Patch images into the ClusterServiceVersion instead of the operator Deployment.",
	)
	flags.BoolVar(
		&o.InCluster,
		"in-cluster",
		false,
		"Run the deploy inside the cluster as a Job and stream its logs.",
	)
}
