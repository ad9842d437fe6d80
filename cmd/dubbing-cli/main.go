package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/ddphuc01/dubbing-cli/internal/cache"
	"github.com/ddphuc01/dubbing-cli/internal/config"
	"github.com/ddphuc01/dubbing-cli/internal/jobs"
	"github.com/ddphuc01/dubbing-cli/internal/service"
	"github.com/ddphuc01/dubbing-cli/pkg/log"
)

func main() {
	_ = godotenv.Load()
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := cache.NewSQLiteStore(filepath.Join(cfg.DataDir, "cache.db"))
	if err != nil {
		log.Fatal("Failed to open translation cache: %v", err)
	}
	defer store.Close()

	if cfg.SubtitleFile != "" {
		runOnce(cfg, store)
		return
	}
	runService(cfg, store)
}

// runOnce translates a single file and exits.
func runOnce(cfg *config.Config, store *cache.SQLiteStore) {
	queue := jobs.NewQueue(1, nil)
	defer queue.Stop()

	svc, err := service.New(cfg, queue, cron.New(), store)
	if err != nil {
		log.Fatal("Failed to build service: %v", err)
	}

	if err := svc.TranslateOnce(context.Background(), cfg.SubtitleFile); err != nil {
		service.NewDefaultErrorHandler().Handle(err)
		os.Exit(1)
	}
}

// runService scans on a cron schedule until interrupted.
func runService(cfg *config.Config, store *cache.SQLiteStore) {
	jobStore, err := jobs.NewSQLiteStore(filepath.Join(cfg.DataDir, "jobs.db"))
	if err != nil {
		log.Fatal("Failed to open job store: %v", err)
	}
	defer jobStore.Close()

	queue := jobs.NewQueue(cfg.Translate.Concurrency, jobStore)
	c := cron.New()

	svc, err := service.New(cfg, queue, c, store)
	if err != nil {
		log.Fatal("Failed to build service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Schedule(ctx); err != nil {
		log.Fatal("Failed to schedule scans: %v", err)
	}
	c.Start()

	// one scan right away so a fresh install does not wait for the
	// first cron tick
	svc.ScanAll(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
	cancel()
	<-c.Stop().Done()
	svc.Stop()
}
