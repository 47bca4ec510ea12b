package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/spec-kit/support-relay/pkg/util/errorutil"
)

// Delivery modes for inbound updates.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

const (
	defaultAutoReply    = "Thanks! We received your message. An operator will reply soon."
	defaultCloseAck     = "Dialog closed ✅"
	defaultClosedNotice = "The support dialog is closed. If you have new questions, just write here again."
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Telegram  TelegramConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Relay     RelayConfig
	Telemetry TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// TelegramConfig holds bot credentials and delivery settings.
type TelegramConfig struct {
	BotToken              string
	HubChatID             int64
	APIURL                string
	Mode                  string
	WebhookURL            string
	WebhookSecret         string
	PollTimeoutSeconds    int
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// RelayConfig holds user-facing texts and routing knobs.
type RelayConfig struct {
	AutoReplyText    string
	CloseAckText     string
	ClosedNoticeText string
	DefaultSource    string
	LockTTLSeconds   int
	DedupTTLSeconds  int
}

// TelemetryConfig configures OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads configuration from environment variables, applying defaults where possible.
// Missing or malformed required values produce a config error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if botToken == "" {
		return nil, apperrors.NewConfigError("BOT_TOKEN", "required")
	}

	rawHub := strings.TrimSpace(os.Getenv("SUPPORT_CHAT_ID"))
	if rawHub == "" {
		return nil, apperrors.NewConfigError("SUPPORT_CHAT_ID", "required")
	}
	hubChatID, err := strconv.ParseInt(rawHub, 10, 64)
	if err != nil || hubChatID == 0 {
		return nil, apperrors.NewConfigError("SUPPORT_CHAT_ID", "must be a non-zero integer chat id")
	}

	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		return nil, apperrors.NewConfigError("POSTGRES_DSN", "required")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, apperrors.NewConfigError("REDIS_DB", fmt.Sprintf("invalid: %v", err))
	}

	mode := strings.ToLower(getEnv("TELEGRAM_MODE", ModePolling))
	if mode != ModePolling && mode != ModeWebhook {
		return nil, apperrors.NewConfigError("TELEGRAM_MODE", "must be polling or webhook")
	}
	webhookURL := os.Getenv("TELEGRAM_WEBHOOK_URL")
	if mode == ModeWebhook && webhookURL == "" {
		return nil, apperrors.NewConfigError("TELEGRAM_WEBHOOK_URL", "required in webhook mode")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-relay"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Telegram: TelegramConfig{
			BotToken:              botToken,
			HubChatID:             hubChatID,
			APIURL:                strings.TrimRight(getEnv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
			Mode:                  mode,
			WebhookURL:            webhookURL,
			WebhookSecret:         os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			PollTimeoutSeconds:    getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 30),
			RequestTimeoutSeconds: getEnvAsInt("TELEGRAM_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Relay: RelayConfig{
			AutoReplyText:    getEnv("AUTO_REPLY_TEXT", defaultAutoReply),
			CloseAckText:     getEnv("CLOSE_ACK_TEXT", defaultCloseAck),
			ClosedNoticeText: getEnv("CLOSED_NOTICE_TEXT", defaultClosedNotice),
			DefaultSource:    getEnv("DEFAULT_SOURCE", "app"),
			LockTTLSeconds:   getEnvAsInt("RELAY_LOCK_TTL_SECONDS", 10),
			DedupTTLSeconds:  getEnvAsInt("RELAY_DEDUP_TTL_SECONDS", 3600),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// RequestTimeout bounds a single Bot API call.
func (t TelegramConfig) RequestTimeout() time.Duration {
	return seconds(t.RequestTimeoutSeconds)
}

// LockTTL returns how long a per-user resolution lock is held at most.
func (r RelayConfig) LockTTL() time.Duration {
	return seconds(r.LockTTLSeconds)
}

// DedupTTL returns how long a seen update id is remembered.
func (r RelayConfig) DedupTTL() time.Duration {
	return seconds(r.DedupTTLSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
