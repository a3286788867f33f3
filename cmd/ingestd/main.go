package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/app"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/config"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Sync()

	application, err := app.NewApp(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("startup failed", "error", err)
	}
	defer application.Close()

	lg.Info("ingestd running", "workers", cfg.Workers, "queue", cfg.QueueURL)
	if err := application.Run(ctx); err != nil {
		lg.Error("worker exited", "error", err)
	}
	lg.Info("shutdown complete")
}
