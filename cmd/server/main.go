package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodies-chatbot/handler"
	"foodies-chatbot/internal/app"
	"foodies-chatbot/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := app.ResolveSecrets(ctx, &cfg); err != nil {
		logger.Error("failed to resolve secrets", "err", err)
		os.Exit(1)
	}

	h, err := app.NewHandler(cfg, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler.NewRouter(h, cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			"port", cfg.Port,
			"has_openai_key", cfg.OpenAIAPIKey != "",
			"has_assistant_id", cfg.AssistantID != "",
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

// writeTimeout outlasts a bounded run by one upstream call. Without RUN_TIMEOUT
// runs poll until they finish, so writes are unbounded too.
func writeTimeout(cfg config.Config) time.Duration {
	if cfg.RunTimeout <= 0 {
		return 0
	}
	return cfg.RunTimeout + cfg.HTTPTimeout + 5*time.Second
}
