package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/brunobiangulo/litassist"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", "", "Listen address (overrides HOST/PORT)")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := litassist.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = litassist.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	if err := litassist.ApplyEnv(&cfg); err != nil {
		slog.Error("reading environment", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	assistant, err := litassist.New(cfg)
	if err != nil {
		slog.Error("creating assistant", "error", err)
		os.Exit(1)
	}
	defer assistant.Close()

	if !assistant.Configured() {
		slog.Warn("no API key configured, analysis requests will fail", "provider", cfg.LLM.Provider)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler, err := startRetention(ctx, assistant, cfg.RetentionSchedule, cfg.RetentionDays)
	if err != nil {
		slog.Error("scheduling retention", "schedule", cfg.RetentionSchedule, "error", err)
		os.Exit(1)
	}

	listen := cfg.Addr()
	if *addr != "" {
		listen = *addr
	}
	srv := &http.Server{
		Addr:         listen,
		Handler:      newRouter(assistant, cfg),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // analysis can take minutes
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting",
			"addr", listen,
			"provider", assistant.Provider(),
			"model", assistant.Model(),
			"max_upload", humanize.IBytes(uint64(cfg.MaxUploadBytes)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
