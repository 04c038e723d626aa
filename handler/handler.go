package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"foodies-chatbot/internal/domain"
	"foodies-chatbot/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	healthMessage     = "Foodies Chatbot API is running"
)

// ChatUseCase is the behaviour the transport needs from usecase.ChatService.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Health() usecase.HealthOutput
}

type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	HasOpenAIKey   bool   `json:"has_openai_key"`
	HasAssistantID bool   `json:"has_assistant_id"`
}

type Handler struct {
	uc             ChatUseCase
	logger         *slog.Logger
	allowedOrigins []string
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins sets the origins allowed on Lambda responses. A "*"
// entry allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		var list []string
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		if len(list) > 0 {
			h.allowedOrigins = list
		}
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{
		uc:             uc,
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(headerValue(event.Headers, correlationHeader))
	path := normalizePath(event.Path)
	origin := h.allowOrigin(headerValue(event.Headers, "Origin"))

	var (
		status  int
		payload any
	)
	switch {
	case event.HTTPMethod == http.MethodOptions:
		return h.lambdaResponse(http.StatusNoContent, nil, corrID, origin), nil
	case path == "/" && event.HTTPMethod == http.MethodGet:
		status, payload = h.health()
	case path == "/api/chat" && event.HTTPMethod == http.MethodPost:
		body, err := eventBody(event)
		if err != nil {
			status, payload = http.StatusBadRequest, errorResponse{Error: "Invalid request body"}
			break
		}
		status, payload = h.chat(ctx, corrID, body)
	case path == "/" || path == "/api/chat":
		status, payload = http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}
	default:
		status, payload = http.StatusNotFound, errorResponse{Error: "Not found"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode response", "correlation_id", corrID, "err", err)
		return h.lambdaResponse(http.StatusInternalServerError, []byte(`{"success":false,"error":"internal error"}`), corrID, origin), nil
	}
	return h.lambdaResponse(status, body, corrID, origin), nil
}

func (h *Handler) health() (int, any) {
	out := h.uc.Health()
	return http.StatusOK, healthResponse{
		Status:         "ok",
		Message:        healthMessage,
		HasOpenAIKey:   out.HasAPIKey,
		HasAssistantID: out.HasAssistantID,
	}
}

func (h *Handler) chat(ctx context.Context, corrID string, body []byte) (int, any) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid chat request body", "correlation_id", corrID, "err", err)
		return http.StatusBadRequest, errorResponse{Error: "Invalid request body"}
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{Messages: req.Messages})
	if err != nil {
		status, msg := h.mapError(ctx, corrID, err)
		return status, errorResponse{Error: msg}
	}

	h.logger.InfoContext(ctx, "chat completed",
		"correlation_id", corrID,
		"thread_id", out.ThreadID,
		"run_id", out.RunID,
		"sources", out.Sources,
	)
	return http.StatusOK, chatResponse{Success: true, Message: out.Message}
}

func (h *Handler) mapError(ctx context.Context, corrID string, err error) (int, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		h.logger.ErrorContext(ctx, "chat request failed", "correlation_id", corrID, "err", err)
		return http.StatusInternalServerError, err.Error()
	}

	attrs := []any{"correlation_id", corrID, "code", ucErr.Code, "reason", ucErr.Reason}
	if ucErr.Err != nil {
		attrs = append(attrs, "err", ucErr.Err)
	}
	if ucErr.Code == usecase.ErrorInvalidInput {
		h.logger.WarnContext(ctx, "chat request rejected", attrs...)
		return http.StatusBadRequest, ucErr.Message()
	}
	h.logger.ErrorContext(ctx, "chat request failed", attrs...)
	return http.StatusInternalServerError, ucErr.Message()
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request
// origin, or "" when the origin is not allowed.
func (h *Handler) allowOrigin(requestOrigin string) string {
	requestOrigin = strings.TrimSpace(requestOrigin)
	for _, o := range h.allowedOrigins {
		if o == "*" {
			return "*"
		}
		if requestOrigin != "" && strings.EqualFold(o, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}

func (h *Handler) lambdaResponse(status int, body []byte, corrID, origin string) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":                 "application/json",
		correlationHeader:              corrID,
		"Access-Control-Allow-Headers": "Content-Type, " + correlationHeader,
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
	if origin != "" {
		headers["Access-Control-Allow-Origin"] = origin
	}
	if origin != "*" {
		headers["Vary"] = "Origin"
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

func eventBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	return base64.StdEncoding.DecodeString(event.Body)
}

// headerValue looks a header up case-insensitively; API Gateway preserves client casing.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func correlationID(provided string) string {
	if id := strings.TrimSpace(provided); id != "" {
		return id
	}
	return uuid.NewString()
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p = strings.TrimRight(p, "/"); p == "" {
		return "/"
	}
	return p
}
