package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/planbiir/trackconv/internal/api"
	"github.com/planbiir/trackconv/internal/config"
	"github.com/planbiir/trackconv/internal/elevation"
	"github.com/planbiir/trackconv/internal/metrics"
	"github.com/planbiir/trackconv/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: ./trackconv.yaml if present)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Log, os.Stdout)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	enricher, closeEnricher, err := elevation.Open(cfg.Elevation, log)
	if err != nil {
		log.Error("elevation source", "error", err)
		os.Exit(1)
	}

	runner, err := pipeline.New(cfg.Pipeline, enricher, log, m)
	if err != nil {
		log.Error("invalid pipeline options", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(runner, log, m, reg, int64(cfg.Server.MaxUploadMB)<<20)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		closeEnricher()
	}()

	log.Info("starting trackconv-server", "addr", cfg.Server.Addr, "elevation", cfg.Elevation.Source)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
