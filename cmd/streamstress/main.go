package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openshift-pipelines/streamstress/cmd/streamstress/command"
)

func main() {
	// SIGTERM matters too: deploys also run as an in-cluster job.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := command.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	os.Exit(code)
}
