package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/pkg/fakeengine"
)

func main() {
	port := flag.Int("port", domain.DefaultPort, "HTTP port to listen on")
	states := flag.String("states", "QUEUED,RUNNING,COMPLETED", "comma separated job states returned by successive polls")
	notReady := flag.Int("not-ready", 0, "number of status probes to fail before reporting ready")
	flag.Parse()

	var script []domain.JobState
	for _, s := range strings.Split(*states, ",") {
		if s = strings.TrimSpace(s); s != "" {
			script = append(script, domain.JobState(strings.ToUpper(s)))
		}
	}

	server := fakeengine.NewServer(fakeengine.Config{
		Port:        *port,
		States:      script,
		NotReadyFor: *notReady,
		Logger:      slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("fake engine failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
