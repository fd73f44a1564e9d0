// Command kanshi compares the output of executor runs, follows their logs,
// and serves the same operations over MCP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp()
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}
