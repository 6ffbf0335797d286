package versioncmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openshift-pipelines/streamstress/internal/version"
)

func NewCmd() *cobra.Command {
	var embedded bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build stamp of this binary",
		Run: func(cmd *cobra.Command, _ []string) {
			render(cmd.OutOrStdout(), version.Get(), embedded)
		},
	}
	cmd.Flags().BoolVar(
		&embedded,
		"embedded",
		false,
		"Also print the embedded module, dependency and VCS details",
	)

	return cmd
}

func render(out io.Writer, info version.Info, embedded bool) {
	fmt.Fprintf(out, "streamstress %s %s\n", info.Version, info.GoVersion)

	if !embedded {
		return
	}
	fmt.Fprintln(out, "mod", info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		fmt.Fprintln(out, "dep", dep.Path, dep.Version)
	}
	for _, setting := range info.Settings {
		fmt.Fprintln(out, "build", setting.Key, setting.Value)
	}
}
