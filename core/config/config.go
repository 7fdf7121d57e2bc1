package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// WhatsAppConfig holds Cloud API credentials and addressing.
type WhatsAppConfig struct {
	Token       string `yaml:"token" envconfig:"WHATSAPP_TOKEN"`
	VerifyToken string `yaml:"verify_token" envconfig:"VERIFY_TOKEN"`
	// PhoneNumberID is the sending line used when an inbound event did not carry one.
	PhoneNumberID string `yaml:"phone_number_id" envconfig:"WHATSAPP_PHONE_NUMBER_ID"`
	// TeamNumber receives lead/concern/feedback alerts.
	TeamNumber string `yaml:"team_number" envconfig:"WHATSAPP_NUMBER"`
	APIBase    string `yaml:"api_base" envconfig:"WHATSAPP_API_BASE"`
	APIVersion string `yaml:"api_version" envconfig:"WHATSAPP_API_VERSION"`
}

// HTTPConfig specifies the webhook listener.
type HTTPConfig struct {
	Listen      string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port        int    `yaml:"port" envconfig:"PORT"`
	WebhookPath string `yaml:"webhook_path" envconfig:"WEBHOOK_PATH"`
}

// SessionConfig controls the reminder ladder, in minutes.
type SessionConfig struct {
	FirstReminderMinutes  int `yaml:"first_reminder_minutes" envconfig:"SESSION_FIRST_REMINDER_MINUTES"`
	SecondReminderMinutes int `yaml:"second_reminder_minutes" envconfig:"SESSION_SECOND_REMINDER_MINUTES"`
	ExpiryMinutes         int `yaml:"expiry_minutes" envconfig:"SESSION_EXPIRY_MINUTES"`
}

// FlowConfig points at an optional catalog override.
type FlowConfig struct {
	CatalogPath string `yaml:"catalog_path" envconfig:"FLOW_CATALOG_PATH"`
}

// TelegramConfig enables team alerts in a Telegram admin chat. Empty token disables it.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
}

// DatabaseConfig holds Postgres settings for the lead journal. The journal is optional.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"DB_ENABLED"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir defaults to ./migrations.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// KeysOrder is a comma separated list of leading keys.
	KeysOrder string `yaml:"keys_order"`
	// DebugSample keeps n of every m debug lines, written "n/m" or "m".
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	File        string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile is "debug", "dev" or "prod"; debug profiles default to KV output.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig enforces a minimum interval between inbound messages of one conversation.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// DispatcherConfig tunes the asynchronous outbound queue.
type DispatcherConfig struct {
	QueueSize      int `yaml:"queue_size" envconfig:"DISPATCH_QUEUE_SIZE"`
	Workers        int `yaml:"workers" envconfig:"DISPATCH_WORKERS"`
	MaxRetries     int `yaml:"max_retries" envconfig:"DISPATCH_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"DISPATCH_RETRY_BACKOFF_MS"`
}

// Config aggregates the whole application configuration.
type Config struct {
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	HTTP       HTTPConfig       `yaml:"http"`
	Session    SessionConfig    `yaml:"session"`
	Flow       FlowConfig       `yaml:"flow"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
}

const (
	defaultVerifyToken = "shunyamudra_token"
	defaultAPIBase     = "https://graph.facebook.com"
	defaultAPIVersion  = "v18.0"
	defaultPort        = 3000
	defaultWebhookPath = "/webhook"

	defaultFirstReminderMinutes  = 30
	defaultSecondReminderMinutes = 60
	defaultExpiryMinutes         = 65
)

// Load reads .env (if present), the YAML file (if present) and environment variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// env-only deployments are allowed
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.WhatsApp.Token = strings.TrimSpace(cfg.WhatsApp.Token)
	if cfg.WhatsApp.Token == "" {
		return fmt.Errorf("whatsapp token is required")
	}
	if strings.TrimSpace(cfg.WhatsApp.VerifyToken) == "" {
		cfg.WhatsApp.VerifyToken = defaultVerifyToken
	}
	if strings.TrimSpace(cfg.WhatsApp.APIBase) == "" {
		cfg.WhatsApp.APIBase = defaultAPIBase
	}
	cfg.WhatsApp.APIBase = strings.TrimRight(cfg.WhatsApp.APIBase, "/")
	if strings.TrimSpace(cfg.WhatsApp.APIVersion) == "" {
		cfg.WhatsApp.APIVersion = defaultAPIVersion
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = defaultPort
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be within 1..65535, got %d", cfg.HTTP.Port)
	}
	path := strings.TrimSpace(cfg.HTTP.WebhookPath)
	if path == "" {
		path = defaultWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	cfg.HTTP.WebhookPath = path

	s := &cfg.Session
	if s.FirstReminderMinutes == 0 {
		s.FirstReminderMinutes = defaultFirstReminderMinutes
	}
	if s.SecondReminderMinutes == 0 {
		s.SecondReminderMinutes = defaultSecondReminderMinutes
	}
	if s.ExpiryMinutes == 0 {
		s.ExpiryMinutes = defaultExpiryMinutes
	}
	if s.FirstReminderMinutes < 0 || s.SecondReminderMinutes < 0 || s.ExpiryMinutes < 0 {
		return fmt.Errorf("session durations must be positive")
	}
	if !(s.FirstReminderMinutes < s.SecondReminderMinutes && s.SecondReminderMinutes < s.ExpiryMinutes) {
		return fmt.Errorf("session ladder must satisfy first < second < expiry, got %d/%d/%d",
			s.FirstReminderMinutes, s.SecondReminderMinutes, s.ExpiryMinutes)
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required when telegram.token is set")
	}

	if cfg.Database.Enabled {
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when database.enabled is true")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 4
		}
	}

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if cfg.Dispatcher.MaxRetries < 0 {
		return fmt.Errorf("dispatcher.max_retries must be >= 0")
	}
	return nil
}

// Durations returns the reminder ladder as durations.
func (s SessionConfig) Durations() (first, second, expiry time.Duration) {
	return time.Duration(s.FirstReminderMinutes) * time.Minute,
		time.Duration(s.SecondReminderMinutes) * time.Minute,
		time.Duration(s.ExpiryMinutes) * time.Minute
}
