// Command dflow-merge merges local .dflow model files into one document.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dflow-platform/dflow-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		logger.Sync()
		os.Exit(1)
	}
}
