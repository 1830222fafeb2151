// MediSync serves document-grounded clinical question answering over HTTP.
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

	"github.com/joho/godotenv"

	"medisync-rag/internal/api"
	"medisync-rag/internal/config"
	"medisync-rag/internal/logging"
	"medisync-rag/internal/rag"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to a YAML or JSON config file (defaults to ./config.yaml or ./config.json)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.App)
	logger.Info("starting MediSync",
		"embedding_provider", cfg.Services.Embedding.Provider,
		"generator_provider", cfg.Services.Generator.Provider,
		"index_backend", cfg.Index.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assistant, err := rag.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize assistant", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(assistant, api.Options{
		Logger:         logger,
		DetailedErrors: cfg.DetailedErrors(),
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		TLSConfig:    cfg.GetTLSConfig(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr, "tls", cfg.Server.TLS.Enabled)
		if cfg.Server.TLS.Enabled {
			errCh <- httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	server.Sessions().CloseAll()
}
