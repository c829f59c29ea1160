package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "POSTFORGE_CONFIG"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	HTTP          HTTPConfig         `yaml:"http"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	AI            AIConfig           `yaml:"ai"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Extract       ExtractConfig      `yaml:"extract"`
	Publish       PublishConfig      `yaml:"publish"`
	Notifications NotificationConfig `yaml:"notifications"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Projects      []ProjectConfig    `yaml:"projects"`
}

// LoggingConfig sets the zap level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN keeps
// state in memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// HTTPConfig configures the trigger API.
type HTTPConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"apiKey"`
}

// SchedulerConfig defines the timezone cron schedules are evaluated in.
type SchedulerConfig struct {
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// AIConfig defines the OpenAI-compatible backend and the model chain.
type AIConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey"`
	Models      []string      `yaml:"models"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// FetchConfig bounds feed requests.
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"userAgent"`
	MaxConcurrency int           `yaml:"maxConcurrency"`
}

// ExtractConfig bounds article page extraction.
type ExtractConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxChars int           `yaml:"maxChars"`
}

// PublishConfig points publishers at platform APIs.
type PublishConfig struct {
	LinkedInEndpoint string        `yaml:"linkedinEndpoint"`
	TwitterEndpoint  string        `yaml:"twitterEndpoint"`
	Timeout          time.Duration `yaml:"timeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Endpoint string `yaml:"endpoint"`
}

// Enabled reports whether alerts can be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ArchiveConfig describes the S3-compatible bucket for sealed run logs.
type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
}

// Enabled reports whether a bucket is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// envOverrides lists variables that win over the YAML file.
type envOverrides struct {
	DatabaseDSN       string   `envconfig:"DATABASE_DSN"`
	HTTPAddr          string   `envconfig:"HTTP_ADDR"`
	APIKey            string   `envconfig:"API_KEY"`
	AIEndpoint        string   `envconfig:"AI_ENDPOINT"`
	AIAPIKey          string   `envconfig:"AI_API_KEY"`
	AIModels          []string `envconfig:"AI_MODELS"`
	TelegramBotToken  string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID    string   `envconfig:"TELEGRAM_CHAT_ID"`
	ArchiveBucket     string   `envconfig:"ARCHIVE_BUCKET"`
	ArchiveEndpoint   string   `envconfig:"ARCHIVE_ENDPOINT"`
	ArchiveRegion     string   `envconfig:"ARCHIVE_REGION"`
	ArchiveAccessKey  string   `envconfig:"ARCHIVE_ACCESS_KEY_ID"`
	ArchiveSecretKey  string   `envconfig:"ARCHIVE_SECRET_ACCESS_KEY"`
	LogLevel          string   `envconfig:"LOG_LEVEL"`
	SchedulerTimezone string   `envconfig:"SCHEDULER_TIMEZONE"`
}

// Load reads an optional .env file and the YAML file named by
// POSTFORGE_CONFIG over defaults, then applies environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path; an empty path uses defaults only.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.applyEnvOverrides(env)

	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&c.Database.DSN, env.DatabaseDSN)
	set(&c.HTTP.Addr, env.HTTPAddr)
	set(&c.HTTP.APIKey, env.APIKey)
	set(&c.AI.Endpoint, env.AIEndpoint)
	set(&c.AI.APIKey, env.AIAPIKey)
	set(&c.Notifications.Telegram.BotToken, env.TelegramBotToken)
	set(&c.Notifications.Telegram.ChatID, env.TelegramChatID)
	set(&c.Archive.Bucket, env.ArchiveBucket)
	set(&c.Archive.Endpoint, env.ArchiveEndpoint)
	set(&c.Archive.Region, env.ArchiveRegion)
	set(&c.Archive.AccessKeyID, env.ArchiveAccessKey)
	set(&c.Archive.SecretAccessKey, env.ArchiveSecretKey)
	set(&c.Logging.Level, env.LogLevel)
	set(&c.Scheduler.Timezone, env.SchedulerTimezone)

	if len(env.AIModels) > 0 {
		models := make([]string, 0, len(env.AIModels))
		for _, m := range env.AIModels {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		c.AI.Models = models
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("scheduler timezone %q: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone},
		AI: AIConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Models:      []string{"gpt-4o-mini"},
			Timeout:     45 * time.Second,
			MaxAttempts: 2,
			Backoff:     2 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:        15 * time.Second,
			UserAgent:      "PostForge/1.0 (+https://github.com/postforge)",
			MaxConcurrency: 8,
		},
		Extract: ExtractConfig{Timeout: 20 * time.Second, MaxChars: 8000},
		Publish: PublishConfig{
			LinkedInEndpoint: "https://api.linkedin.com",
			TwitterEndpoint:  "https://api.twitter.com",
			Timeout:          30 * time.Second,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{Endpoint: "https://api.telegram.org"},
		},
		Archive: ArchiveConfig{Prefix: "runs/", Region: "us-east-1"},
	}
}
