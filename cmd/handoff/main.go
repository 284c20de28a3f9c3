// Package main is the entry point for the handoff CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdziat/simple-cdc-handoff/cmd/handoff/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.NewRootCmd().ExecuteContext(ctx)
	stop()

	app.ReportError(os.Stderr, err)
	os.Exit(app.ExitCode(err))
}
