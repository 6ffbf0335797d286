package setupcmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/openshift-pipelines/streamstress/internal/cluster"
	"github.com/openshift-pipelines/streamstress/internal/setup"
)

func NewCmd() *cobra.Command {
	const (
		setupUse   = "setup"
		setupShort = "Prepare the cluster for midstream builds"
		setupLong  = "Exposes the image registry, creates the build namespace with pull RBAC, " +
			"installs the OpenShift Pipelines operator and creates the baseline TektonConfig. " +
			"Every step is idempotent; failing steps are reported as warnings."
	)

	cmd := &cobra.Command{
		Use:   setupUse,
		Short: setupShort,
		Long:  setupLong,
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := cluster.NewClient()
		if err != nil {
			return err
		}

		outcome := setup.NewBootstrapper(c).Run(cmd.Context())

		out := cmd.OutOrStdout()
		if outcome.Ok() {
			fmt.Fprintln(out, pterm.Green("cluster ready"))
			return nil
		}
		for _, warning := range outcome.Warnings {
			fmt.Fprintln(out, pterm.Yellow("warning: "+warning))
		}
		return nil
	}

	return cmd
}
