package main

import (
	"os"
	"os/signal"
	"syscall"

	"VisionAnalytica/internal/cli"
	"VisionAnalytica/pkg/log"
	"golang.org/x/net/context"
)

func main() {
	logger := log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.RootCommand(&cli.Context{Log: logger, Out: os.Stdout})
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error(err)
		stop()
		os.Exit(1)
	}
}
