// Command studysync is a terminal client for the studysync backend. Every
// command runs through the cached query layer, so reads, writes and
// notifications behave exactly as they do in a long-running client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/dailyyoga/studysync/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		logger.Global().Error("command failed", zap.Error(err))
		pterm.Error.WithWriter(os.Stderr).Println(err)
	}
	_ = logger.Sync()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
