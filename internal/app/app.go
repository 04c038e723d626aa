// Package app wires configuration, upstream clients and the handler together
// for both entrypoints.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"foodies-chatbot/handler"
	"foodies-chatbot/internal/config"
	"foodies-chatbot/internal/integrations/openai"
	"foodies-chatbot/internal/integrations/paramstore"
	"foodies-chatbot/internal/usecase"
)

// NewLogger returns the JSON logger both entrypoints install as the default.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// ResolveSecrets fills missing secrets from SSM when PARAM_PREFIX is set.
func ResolveSecrets(ctx context.Context, cfg *config.Config) error {
	if cfg.ParamPrefix == "" {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("app: load AWS config: %w", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return fmt.Errorf("app: create SSM client: %w", err)
	}
	return cfg.Resolve(ctx, params)
}

// NewHandler builds the chat service and its transport from cfg.
func NewHandler(cfg config.Config, logger *slog.Logger) (*handler.Handler, error) {
	opts := []openai.Option{openai.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	client := openai.NewClient(cfg.OpenAIAPIKey, opts...)

	svc, err := usecase.NewChatService(client, usecase.ChatConfig{
		AssistantID:      cfg.AssistantID,
		PollInterval:     cfg.PollInterval,
		RunTimeout:       cfg.RunTimeout,
		MaxMessageLength: cfg.MaxMessageLength,
		StripCitations:   cfg.StripCitations,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}

	return handler.NewHandler(svc, handler.WithLogger(logger), handler.WithAllowedOrigins(cfg.AllowedOrigins))
}
