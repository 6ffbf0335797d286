// Package check verifies the local environment before any build or deploy
// work starts: required binaries on PATH and an authenticated cluster
// session.
package check

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/openshift-pipelines/streamstress/internal/shell"
)

// Result is the outcome of one preflight probe.
type Result struct {
	Name    string
	Passed  bool
	Detail  string
	FixHint string
}

type tool struct {
	name        string
	versionArgs []string
	fixHint     string
	optional    bool
}

var tools = []tool{
	{name: "oc", versionArgs: []string{"version", "--client"},
		fixHint: "https://docs.openshift.com/container-platform/latest/cli_reference/openshift_cli/getting-started-cli.html"},
	{name: "git", versionArgs: []string{"--version"},
		fixHint: "install git from your package manager"},
	{name: "go", versionArgs: []string{"version"},
		fixHint: "https://go.dev/dl/"},
	{name: "ko", versionArgs: []string{"version"},
		fixHint: "go install github.com/google/ko@latest"},
	{name: "gh", versionArgs: []string{"--version"},
		fixHint: "https://cli.github.com/", optional: true},
}

// Runner probes the environment.
type Runner struct {
	Shell shell.Runner
}

// NewRunner returns a preflight runner using the ambient environment.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes every probe and returns all results. Probes never abort
// early: the caller gets the full picture in one pass.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(tools)+1)
	for _, t := range tools {
		results = append(results, r.probeTool(ctx, t))
	}
	results = append(results, r.probeCluster(ctx))
	return results
}

func (r *Runner) probeTool(ctx context.Context, t tool) Result {
	res := Result{Name: t.name, FixHint: t.fixHint}
	out, err := r.Shell.RunUnchecked(ctx, t.name, t.versionArgs...)
	if err != nil || out.ExitCode != 0 {
		res.Detail = "not found on PATH"
		if t.optional {
			res.Passed = true
			res.Detail = "not found on PATH (optional)"
		}
		return res
	}
	res.Passed = true
	res.Detail = firstLine(out.Stdout)
	return res
}

func (r *Runner) probeCluster(ctx context.Context) Result {
	res := Result{
		Name:    "cluster login",
		FixHint: "oc login --token=<token> --server=<server>",
	}
	out, err := r.Shell.Run(ctx, "oc", "whoami")
	if err != nil {
		res.Detail = "not logged in"
		return res
	}
	res.Passed = true
	res.Detail = fmt.Sprintf("logged in as %s", strings.TrimSpace(out.Stdout))
	return res
}

// Failed reports whether any required probe failed.
func Failed(results []Result) bool {
	for _, res := range results {
		if !res.Passed {
			return true
		}
	}
	return false
}

// Render writes the results as a table.
func Render(out io.Writer, results []Result) error {
	rows := pterm.TableData{{"", "Check", "Detail"}}
	for _, res := range results {
		mark := pterm.Green("✓")
		detail := res.Detail
		if !res.Passed {
			mark = pterm.Red("✗")
			if res.FixHint != "" {
				detail += "\n" + pterm.Gray("fix: "+res.FixHint)
			}
		}
		rows = append(rows, []string{mark, res.Name, detail})
	}
	return pterm.DefaultTable.
		WithWriter(out).
		WithHasHeader(true).
		WithData(rows).
		Render()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
