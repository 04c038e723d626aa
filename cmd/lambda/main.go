package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"foodies-chatbot/internal/app"
	"foodies-chatbot/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
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

	// ---- Handler ----
	h, err := app.NewHandler(cfg, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
