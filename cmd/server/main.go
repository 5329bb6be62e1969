package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tapeingest/internal/config"
	"tapeingest/internal/httpx"
	"tapeingest/internal/logging"
	"tapeingest/internal/pipeline"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, sync, err := logging.New(cfg.Log.Production, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = sync() }()

	if cfg.Provider.APIKey == "" {
		log.Warn("TWELVEDATA_API_KEY not set; provider requests will be rejected")
	}
	if cfg.Provider.CacheTTLSeconds <= 0 {
		log.Warn("provider cache disabled; every request hits the provider")
	}

	hc := httpx.New(time.Duration(cfg.Provider.RequestTimeoutSec) * time.Second)
	p, err := pipeline.FromConfig(cfg, hc, log)
	if err != nil {
		log.Error("setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	s := &server{
		builder:  p,
		defaults: cfg.Instruments,
		timeout:  time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		log:      log,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withCORS(withGzip(recoverPanic(log, limitBody(s.routes())))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("server shut down")
}
