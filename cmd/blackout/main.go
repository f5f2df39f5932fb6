package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wudi/blackout/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, cli.NewBlackoutCommand(), os.Args[1:])
	cancel()
	os.Exit(code)
}
