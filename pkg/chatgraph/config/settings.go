package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the typed settings surface.
const (
	DefaultContextWindow      = 10
	DefaultPoolMinConns       = 3
	DefaultPoolMaxConns       = 15
	DefaultAcquireTimeout     = 30 * time.Second
	DefaultIdleTimeout        = 10 * time.Minute
	DefaultSchemaSetupTimeout = 30 * time.Second
	DefaultModelTimeout       = 60 * time.Second
	DefaultMediaTimeout       = 30 * time.Second
	DefaultSendTimeout        = 30 * time.Second
	DefaultModel              = "claude-sonnet-4-20250514"
	DefaultMaxTokens          = 1024
)

// Settings is the typed configuration surface for a chatgraph deployment.
// Zero values mean "use the default"; Normalize fills them in.
type Settings struct {
	// DatabaseURL selects the Postgres checkpoint backend when non-empty.
	// Empty forces the in-memory backend.
	DatabaseURL string

	// SQLitePath selects the SQLite checkpoint backend when non-empty.
	SQLitePath string

	// ContextWindow is the max history messages (excluding the system
	// preamble) sent to the model per call.
	ContextWindow int

	// Pool bounds for the shared durable-store pool.
	PoolMinConns   int
	PoolMaxConns   int
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration

	// SchemaSetupTimeout bounds one-time durable schema setup.
	SchemaSetupTimeout time.Duration

	// AsyncCheckpoints commits checkpoints through a background queue.
	AsyncCheckpoints bool

	// Per-call timeouts for external collaborators.
	ModelTimeout time.Duration
	MediaTimeout time.Duration
	SendTimeout  time.Duration

	// Model generation parameters.
	Model        string
	MaxTokens    int
	SystemPrompt string

	// Collaborator credentials.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	WhatsAppToken   string
	WhatsAppPhoneID string
}

// Normalize fills zero values with defaults and returns the settings.
func (s Settings) Normalize() Settings {
	if s.ContextWindow <= 0 {
		s.ContextWindow = DefaultContextWindow
	}
	if s.PoolMinConns <= 0 {
		s.PoolMinConns = DefaultPoolMinConns
	}
	if s.PoolMaxConns <= 0 {
		s.PoolMaxConns = DefaultPoolMaxConns
	}
	if s.AcquireTimeout <= 0 {
		s.AcquireTimeout = DefaultAcquireTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.SchemaSetupTimeout <= 0 {
		s.SchemaSetupTimeout = DefaultSchemaSetupTimeout
	}
	if s.ModelTimeout <= 0 {
		s.ModelTimeout = DefaultModelTimeout
	}
	if s.MediaTimeout <= 0 {
		s.MediaTimeout = DefaultMediaTimeout
	}
	if s.SendTimeout <= 0 {
		s.SendTimeout = DefaultSendTimeout
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// SettingsFromConfig extracts typed settings from an untyped Config.
// Unknown or malformed values fall back to defaults.
func SettingsFromConfig(c Config) Settings {
	s := Settings{
		DatabaseURL:        c.String("database_url", ""),
		SQLitePath:         c.String("sqlite_path", ""),
		ContextWindow:      c.Int("context_window", DefaultContextWindow),
		PoolMinConns:       c.Int("pool_min_conns", DefaultPoolMinConns),
		PoolMaxConns:       c.Int("pool_max_conns", DefaultPoolMaxConns),
		AcquireTimeout:     c.Duration("pool_acquire_timeout", DefaultAcquireTimeout),
		IdleTimeout:        c.Duration("pool_idle_timeout", DefaultIdleTimeout),
		SchemaSetupTimeout: c.Duration("schema_setup_timeout", DefaultSchemaSetupTimeout),
		AsyncCheckpoints:   c.Bool("async_checkpoints", false),
		ModelTimeout:       c.Duration("model_timeout", DefaultModelTimeout),
		MediaTimeout:       c.Duration("media_timeout", DefaultMediaTimeout),
		SendTimeout:        c.Duration("send_timeout", DefaultSendTimeout),
		Model:              c.String("model", DefaultModel),
		MaxTokens:          c.Int("max_tokens", DefaultMaxTokens),
		SystemPrompt:       c.String("system_prompt", ""),
		AnthropicAPIKey:    c.String("anthropic_api_key", ""),
		OpenAIAPIKey:       c.String("openai_api_key", ""),
		WhatsAppToken:      c.String("whatsapp_token", ""),
		WhatsAppPhoneID:    c.String("whatsapp_phone_id", ""),
	}
	return s.Normalize()
}

// SettingsFromEnv builds settings from environment variables. If a .env file
// exists in the working directory it is loaded first; a missing file is not
// an error.
func SettingsFromEnv() Settings {
	_ = godotenv.Load()

	s := Settings{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		ContextWindow:      envInt("CONTEXT_WINDOW"),
		PoolMinConns:       envInt("POOL_MIN_CONNS"),
		PoolMaxConns:       envInt("POOL_MAX_CONNS"),
		AcquireTimeout:     envDuration("POOL_ACQUIRE_TIMEOUT"),
		IdleTimeout:        envDuration("POOL_IDLE_TIMEOUT"),
		SchemaSetupTimeout: envDuration("SCHEMA_SETUP_TIMEOUT"),
		AsyncCheckpoints:   os.Getenv("ASYNC_CHECKPOINTS") == "true",
		ModelTimeout:       envDuration("MODEL_TIMEOUT"),
		MediaTimeout:       envDuration("MEDIA_TIMEOUT"),
		SendTimeout:        envDuration("SEND_TIMEOUT"),
		Model:              os.Getenv("MODEL"),
		MaxTokens:          envInt("MAX_TOKENS"),
		SystemPrompt:       os.Getenv("SYSTEM_PROMPT"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		WhatsAppToken:      os.Getenv("WHATSAPP_TOKEN"),
		WhatsAppPhoneID:    os.Getenv("WHATSAPP_PHONE_ID"),
	}
	return s.Normalize()
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}
