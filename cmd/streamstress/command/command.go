package command

import (
	"context"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/openshift-pipelines/streamstress/cmd/streamstress/buildcmd"
	"github.com/openshift-pipelines/streamstress/cmd/streamstress/checkcmd"
	"github.com/openshift-pipelines/streamstress/cmd/streamstress/deploycmd"
	"github.com/openshift-pipelines/streamstress/cmd/streamstress/setupcmd"
	"github.com/openshift-pipelines/streamstress/cmd/streamstress/versioncmd"
	"github.com/openshift-pipelines/streamstress/internal/version"
)

const (
	// ReturnCodeSuccess is passed to os.Exit() when no error is reported.
	ReturnCodeSuccess = 0
	// ReturnCodeError is passed to os.Exit() if a command reports an error.
	ReturnCodeError = 1
)

func Run(ctx context.Context, inReader io.Reader, outWriter, errWriter io.Writer, args []string) int {
	cmd := CobraRoot(errWriter)
	cmd.SetIn(inReader)
	cmd.SetOut(outWriter)
	cmd.SetErr(errWriter)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		return ReturnCodeError
	}

	return ReturnCodeSuccess
}

func CobraRoot(errWriter io.Writer) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "streamstress",
		Short:        "Build midstream Tekton components and promote them into a live operator",
		Version:      version.Get().Version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := zapcore.InfoLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		log := zap.New(
			zap.UseDevMode(true),
			zap.WriteTo(errWriter),
			zap.Level(level),
		)
		cmd.SetContext(logr.NewContext(cmd.Context(), log))
	}

	cmd.AddCommand(
		buildcmd.NewCmd(),
		deploycmd.NewCmd(),
		setupcmd.NewCmd(),
		checkcmd.NewCmd(),
		versioncmd.NewCmd(),
	)

	return cmd
}
