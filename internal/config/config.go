package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string

	StylistProvider string
	StylistAPIKey   string
	StylistBaseURL  string
	StylistModel    string
	StylistTimeout  time.Duration

	SinkBackend           string
	SinkTimeout           time.Duration
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	SheetID               string
	SheetRange            string
	SheetEnsureHeader     bool
	DatabaseURL           string
	SQLitePath            string

	SessionBackend string
	RedisURL       string
	SessionTTL     time.Duration

	NatsURL   string
	NatsToken string

	SlackBotToken     string
	SlackAlertChannel string

	CORSOrigins []string
}

// LoadEnvFile seeds the process environment from a .env file. Variables that
// are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	return Config{
		Port:     envInt("INTAKE_PORT", 8760),
		LogLevel: envStr("LOG_LEVEL", "info"),

		StylistProvider: strings.ToLower(envStr("STYLIST_PROVIDER", "groq")),
		StylistAPIKey:   envStr("STYLIST_API_KEY", ""),
		StylistBaseURL:  envStr("STYLIST_BASE_URL", "https://api.groq.com/openai/v1/"),
		StylistModel:    envStr("STYLIST_MODEL", "llama-3.1-8b-instant"),
		StylistTimeout:  envDuration("STYLIST_TIMEOUT", 15*time.Second),

		SinkBackend:           strings.ToLower(envStr("SINK_BACKEND", "sheets")),
		SinkTimeout:           envDuration("SINK_TIMEOUT", 20*time.Second),
		GoogleCredentialsFile: envStr("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: envStr("GOOGLE_CREDENTIALS_JSON", ""),
		SheetID:               envStr("SHEET_ID", ""),
		SheetRange:            envStr("SHEET_RANGE", "Safety_Reports!A1"),
		SheetEnsureHeader:     envBool("SHEET_ENSURE_HEADER", true),
		DatabaseURL:           envStr("DATABASE_URL", ""),
		SQLitePath:            envStr("SQLITE_PATH", "./data/reports.db"),

		SessionBackend: strings.ToLower(envStr("SESSION_BACKEND", "memory")),
		RedisURL:       envStr("REDIS_URL", ""),
		SessionTTL:     envDuration("SESSION_TTL", 24*time.Hour),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		SlackBotToken:     envStr("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel: envStr("SLACK_ALERT_CHANNEL", ""),

		CORSOrigins: envList("CORS_ORIGINS"),
	}
}

// Validate checks that the selected backends have the settings they need.
func (c Config) Validate() error {
	var errs []error

	switch c.SinkBackend {
	case "sheets":
		if c.SheetID == "" {
			errs = append(errs, errors.New("SHEET_ID is required for the sheets sink"))
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON is required for the sheets sink"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres sink"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SINK_BACKEND %q", c.SinkBackend))
	}

	switch c.StylistProvider {
	case "groq", "openai", "anthropic":
		if c.StylistAPIKey == "" {
			errs = append(errs, fmt.Errorf("STYLIST_API_KEY is required for the %s stylist", c.StylistProvider))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown STYLIST_PROVIDER %q", c.StylistProvider))
	}

	switch c.SessionBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}

	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
