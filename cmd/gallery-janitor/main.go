package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alumni-connect/gallery-service/internal/bootstrap"
	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/janitor"
)

var once = flag.Bool("once", false, "Run a single sweep and exit")

func main() {
	// Load config
	cfg := config.MustLoad()
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With("system", "janitor")
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, closeRecords, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer closeRecords()

	blobs, err := bootstrap.OpenBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize blob store:", err)
	}

	sweeper := janitor.New(records, blobs, cfg.Janitor.RemoveOrphans, cfg.Janitor.MinAge, logger)

	if *once {
		sweeper.Run()
		return
	}

	scheduler := janitor.NewScheduler(logger)
	if err := scheduler.Register(cfg.Janitor.Schedule, sweeper); err != nil {
		log.Fatalf("invalid janitor schedule %q: %s", cfg.Janitor.Schedule, err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately on startup
	go sweeper.Run()
	scheduler.Start()

	<-sigCh
	logger.Info("Received shutdown signal")

	scheduler.Stop()
	logger.Info("Gallery janitor stopped")
}
