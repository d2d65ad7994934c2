// Package cli provides the command-line interface for BrokerGo
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Run executes the root command until it finishes or the process is
// interrupted.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
