// Package main provides the pageprobe CLI entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukemcguire/pageprobe/result"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		result.PrintError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 130 for a user interrupt and 1 for every other failure.
func exitCode(err error) int {
	if result.IsAborted(err) {
		return 130
	}
	return 1
}
