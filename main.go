// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rmaia-dev/lotobot/cmd"
)

// main is the entry point for the lotobot CLI application.
func main() {
	// Ctrl-C cancels the run context so the browser shuts down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
