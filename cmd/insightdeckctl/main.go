package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightdeck/insightdeck/internal/cli/insightdeckctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := insightdeckctl.Run(ctx, os.Args[1:], insightdeckctl.Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}
