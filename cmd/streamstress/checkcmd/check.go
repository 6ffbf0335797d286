package checkcmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/openshift-pipelines/streamstress/internal/check"
)

func NewCmd() *cobra.Command {
	const (
		checkUse   = "check"
		checkShort = "Verify required tools and cluster access"
	)

	cmd := &cobra.Command{
		Use:   checkUse,
		Short: checkShort,
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		results := check.NewRunner().Run(cmd.Context())
		if err := check.Render(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		if check.Failed(results) {
			return errors.New("environment checks failed")
		}
		return nil
	}

	return cmd
}
