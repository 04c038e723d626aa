package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"foodies-chatbot/internal/integrations/paramstore"
)

const (
	defaultPort             = "5000"
	defaultPollInterval     = 500 * time.Millisecond
	defaultHTTPTimeout      = 30 * time.Second
	defaultMaxMessageLength = 4000
)

// Config holds everything read from the environment. It is loaded once in main.
type Config struct {
	OpenAIAPIKey     string
	AssistantID      string
	OpenAIBaseURL    string
	Port             string
	ParamPrefix      string
	PollInterval     time.Duration
	RunTimeout       time.Duration
	HTTPTimeout      time.Duration
	MaxMessageLength int
	StripCitations   bool
	AllowedOrigins   []string
	LogLevel         slog.Level
}

// Load reads a .env file if one exists, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.Getenv), nil
}

// FromEnv builds a Config from a lookup function. Malformed optional values
// fall back to their defaults.
func FromEnv(getenv func(string) string) Config {
	return Config{
		OpenAIAPIKey:     strings.TrimSpace(getenv("OPENAI_API_KEY")),
		AssistantID:      strings.TrimSpace(getenv("ASSISTANT_ID")),
		OpenAIBaseURL:    strings.TrimSpace(getenv("OPENAI_BASE_URL")),
		Port:             envString(getenv, "PORT", defaultPort),
		ParamPrefix:      strings.TrimRight(strings.TrimSpace(getenv("PARAM_PREFIX")), "/"),
		PollInterval:     envDuration(getenv, "POLL_INTERVAL", defaultPollInterval),
		RunTimeout:       envDuration(getenv, "RUN_TIMEOUT", 0),
		HTTPTimeout:      envDuration(getenv, "HTTP_TIMEOUT", defaultHTTPTimeout),
		MaxMessageLength: envInt(getenv, "MAX_MESSAGE_LENGTH", defaultMaxMessageLength),
		StripCitations:   envBool(getenv, "STRIP_CITATIONS", true),
		AllowedOrigins:   envList(getenv, "CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:         envLevel(getenv, "LOG_LEVEL", slog.LevelInfo),
	}
}

// Resolve fills a missing API key or assistant ID from the parameter store
// when a prefix is configured. Values already set in the environment win.
func (c *Config) Resolve(ctx context.Context, params paramstore.Getter) error {
	if c.ParamPrefix == "" || (c.OpenAIAPIKey != "" && c.AssistantID != "") {
		return nil
	}
	if params == nil {
		return errors.New("config: param getter must not be nil when PARAM_PREFIX is set")
	}

	if c.OpenAIAPIKey == "" {
		raw, err := params.GetParameter(ctx, c.ParamPrefix+"/openai_api_key")
		if err != nil {
			return fmt.Errorf("config: load openai api key: %w", err)
		}
		key, err := parseToken(raw)
		if err != nil {
			return fmt.Errorf("config: load openai api key: %w", err)
		}
		c.OpenAIAPIKey = key
	}
	if c.AssistantID == "" {
		id, err := params.GetParameter(ctx, c.ParamPrefix+"/assistant_id")
		if err != nil {
			return fmt.Errorf("config: load assistant id: %w", err)
		}
		c.AssistantID = strings.TrimSpace(id)
	}
	return nil
}

// tokenPayload is the JSON shape a SecureString may hold for the API key.
type tokenPayload struct {
	Token string `json:"token"`
}

// parseToken accepts either {"token":"..."} or the raw key.
func parseToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("unmarshal token payload: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", errors.New("API token is empty")
	}
	return raw, nil
}

func envString(getenv func(string) string, key, def string) string {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(getenv func(string) string, key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func envBool(getenv func(string) string, key string, def bool) bool {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(getenv func(string) string, key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envLevel(getenv func(string) string, key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return lvl
}
