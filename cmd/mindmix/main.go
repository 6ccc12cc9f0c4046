package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/config"
	"mindmix/internal/httpapi"
	"mindmix/internal/logging"
	"mindmix/internal/session"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "genkey" {
		key, err := session.GenerateKey(32)
		if err != nil {
			log.Fatalf("Failed to generate key: %v", err)
		}
		fmt.Println(key)
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Create router with all dependencies
	handler, deps, err := httpapi.NewRouter(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	// A question may wait on the inference call for its full timeout
	writeTimeout := 30 * time.Second
	if cfg.Inference.Timeout+10*time.Second > writeTimeout {
		writeTimeout = cfg.Inference.Timeout + 10*time.Second
	}

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("MindMix listening",
			zap.String("addr", addr),
			zap.String("history_backend", cfg.History.Backend),
			zap.Bool("oauth_enabled", cfg.OAuthEnabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop session cleanup and close Redis, the database and the provider
	if err := deps.Close(); err != nil {
		logger.Error("Failed to release dependencies", zap.Error(err))
	}

	logger.Info("Server exited")
}
