package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"foodies-chatbot/internal/domain"
	"foodies-chatbot/internal/format"
	"foodies-chatbot/internal/integrations/openai"
)

const defaultPollInterval = 500 * time.Millisecond

// AssistantClient is the subset of the Assistants API the chat flow drives.
type AssistantClient interface {
	HasAPIKey() bool
	CreateThread(ctx context.Context) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (openai.Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	ListMessages(ctx context.Context, threadID string) ([]openai.Message, error)
}

// ChatConfig tunes ChatService. Zero values select the defaults.
type ChatConfig struct {
	AssistantID      string
	PollInterval     time.Duration
	RunTimeout       time.Duration
	MaxMessageLength int
	StripCitations   bool
}

type ChatService struct {
	client           AssistantClient
	assistantID      string
	pollInterval     time.Duration
	runTimeout       time.Duration
	maxMessageLength int
	stripCitations   bool
}

type ChatInput struct {
	Messages []domain.ChatMessage
}

type ChatOutput struct {
	Message  string
	ThreadID string
	RunID    string
	Sources  []string
}

type HealthOutput struct {
	HasAPIKey      bool
	HasAssistantID bool
}

func NewChatService(client AssistantClient, cfg ChatConfig) (*ChatService, error) {
	if client == nil {
		return nil, errors.New("usecase: assistant client must not be nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RunTimeout < 0 {
		cfg.RunTimeout = 0
	}
	if cfg.MaxMessageLength < 0 {
		cfg.MaxMessageLength = 0
	}
	return &ChatService{
		client:           client,
		assistantID:      strings.TrimSpace(cfg.AssistantID),
		pollInterval:     cfg.PollInterval,
		runTimeout:       cfg.RunTimeout,
		maxMessageLength: cfg.MaxMessageLength,
		stripCitations:   cfg.StripCitations,
	}, nil
}

// Health reports which pieces of upstream configuration are present.
func (s *ChatService) Health() HealthOutput {
	return HealthOutput{
		HasAPIKey:      s.client.HasAPIKey(),
		HasAssistantID: s.assistantID != "",
	}
}

// Chat forwards the latest user message to the assistant and returns its
// cleaned-up reply. Each call uses a fresh thread.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if len(in.Messages) == 0 {
		return ChatOutput{}, newDetailedError(ErrorInvalidInput, "no_messages", "No messages provided")
	}
	content, ok := lastUserMessage(in.Messages)
	if !ok {
		return ChatOutput{}, newDetailedError(ErrorInvalidInput, "no_user_message", "No user message found")
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(content) > s.maxMessageLength {
		return ChatOutput{}, newDetailedError(ErrorInvalidInput, "message_too_long", "Message too long")
	}
	if !s.client.HasAPIKey() {
		return ChatOutput{}, newDetailedError(ErrorInternal, "missing_api_key", "OpenAI API key is not configured")
	}
	if s.assistantID == "" {
		return ChatOutput{}, newDetailedError(ErrorInternal, "missing_assistant_id", "Assistant ID is not configured")
	}

	thread, err := s.client.CreateThread(ctx)
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "create_thread_error", err)
	}
	if _, err := s.client.CreateMessage(ctx, thread.ID, domain.RoleUser, content); err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "create_message_error", err)
	}
	run, err := s.client.CreateRun(ctx, thread.ID, s.assistantID)
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "create_run_error", err)
	}

	run, err = s.waitForRun(ctx, thread.ID, run)
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "run_wait_error", err)
	}
	if run.Status != openai.RunStatusCompleted {
		e := newDetailedError(ErrorRunFailed, "run_failed", "Run failed with status: "+run.Status)
		if run.LastError != nil {
			e.Err = fmt.Errorf("%s: %s", run.LastError.Code, run.LastError.Message)
		}
		return ChatOutput{}, e
	}

	msgs, err := s.client.ListMessages(ctx, thread.ID)
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "list_messages_error", err)
	}
	reply, ok := latestAssistantText(msgs)
	if !ok {
		return ChatOutput{}, newDetailedError(ErrorUpstream, "no_assistant_reply", "Assistant returned no text response")
	}
	sources := format.Citations(reply)
	if s.stripCitations {
		reply = format.StripCitations(reply)
	}

	return ChatOutput{
		Message:  format.PreprocessMarkdown(reply),
		ThreadID: thread.ID,
		RunID:    run.ID,
		Sources:  sources,
	}, nil
}

// waitForRun polls until the run leaves queued/in_progress, the context ends
// or the configured run timeout elapses.
func (s *ChatService) waitForRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	for run.Pending() {
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("wait for run %s (last status %s): %w", run.ID, run.Status, ctx.Err())
		case <-timer.C:
		}

		next, err := s.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, err
		}
		run = next
		timer.Reset(s.pollInterval)
	}
	return run, nil
}

// lastUserMessage returns the content of the newest user message. Older user
// messages are not considered when the newest one is blank.
func lastUserMessage(msgs []domain.ChatMessage) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != domain.RoleUser {
			continue
		}
		content := msgs[i].Content
		if strings.TrimSpace(content) == "" {
			return "", false
		}
		return content, true
	}
	return "", false
}

func latestAssistantText(msgs []openai.Message) (string, bool) {
	for _, m := range msgs {
		if m.Role != domain.RoleAssistant {
			continue
		}
		if text, ok := m.Text(); ok {
			return text, true
		}
	}
	return "", false
}
