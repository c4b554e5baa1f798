package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the run; the container is still released.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("interrupted, cleaning up")
		cancel()
	}()

	a := newApp(logger, level)
	err := newRootCmd(a).ExecuteContext(ctx)
	a.teardown(ctx)
	if err != nil {
		os.Exit(1)
	}
}
