// SPDX-License-Identifier: MIT

// Command vtn runs the OpenADR 3 VTN: the HTTP API, the SQLite store
// and the OAuth token endpoint, all on a single listener.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridlink/openadr3/internal/api"
	"github.com/gridlink/openadr3/internal/auth"
	"github.com/gridlink/openadr3/internal/config"
	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.VTNFromEnv()
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "vtn"})
	logger := log.WithComponent("vtn")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Str("event", "vtn.config_invalid").Msg("refusing to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "vtn.store_open_failed").Str("db_path", cfg.DBPath).Msg("cannot open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("store close error")
		}
	}()

	if cfg.BootstrapClientID != "" {
		if err := st.BootstrapCredential(ctx, cfg.BootstrapClientID, cfg.BootstrapClientSecret); err != nil {
			logger.Fatal().Err(err).Str("event", "vtn.bootstrap_failed").Msg("cannot seed bootstrap credential")
		}
	}

	signer := auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(st, signer).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("event", "vtn.listening").Str("listen", cfg.Listen).Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Str("event", "vtn.server_failed").Msg("HTTP server error")
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info().Str("event", "vtn.shutdown").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
}
