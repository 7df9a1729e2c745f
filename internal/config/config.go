package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RoundMethod selects how fractional amounts are rounded when a subtotal
// discount is spread across line items.
type RoundMethod string

const (
	RoundFloor RoundMethod = "Floor"
	RoundHalf  RoundMethod = "Round"
	RoundCeil  RoundMethod = "Ceil"
)

// Config holds every recognized environment option. Load once at startup;
// request handlers never mutate it.
type Config struct {
	DatabaseURL  string
	DBNamePrefix string

	SecretKey          string
	TokenExpireMinutes int

	KafkaBrokers []string
	RedisAddr    string

	UseItemCache        bool
	ItemCacheTTLSeconds int

	RoundMethodForDiscount RoundMethod

	SlackWebhookURL    string
	PubsubNotifyAPIKey string
	NotifyBaseURL      string

	AlertCooldownSeconds int

	RepublishIntervalMinutes int
	RepublishWindowHours     int

	HTTPAddr       string
	AllowedOrigins string
	Debug          bool
	DebugPort      int
}

// Load reads configuration from the environment. A .env file is honored when
// present. It returns an error for options that are required to reach any
// backing store.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		DBNamePrefix:             envOr("DB_NAME_PREFIX", "pos"),
		SecretKey:                os.Getenv("SECRET_KEY"),
		TokenExpireMinutes:       envInt("TOKEN_EXPIRE_MINUTES", 30),
		RedisAddr:                envOr("REDIS_ADDR", "localhost:6379"),
		UseItemCache:             envBool("USE_ITEM_CACHE", true),
		ItemCacheTTLSeconds:      envInt("ITEM_CACHE_TTL_SECONDS", 60),
		SlackWebhookURL:          os.Getenv("SLACK_WEBHOOK_URL"),
		PubsubNotifyAPIKey:       os.Getenv("PUBSUB_NOTIFY_API_KEY"),
		NotifyBaseURL:            envOr("PUBSUB_NOTIFY_BASE_URL", "http://localhost:8080"),
		AlertCooldownSeconds:     envInt("ALERT_COOLDOWN_SECONDS", 300),
		RepublishIntervalMinutes: envInt("REPUBLISH_INTERVAL_MINUTES", 5),
		RepublishWindowHours:     envInt("REPUBLISH_WINDOW_HOURS", 24),
		HTTPAddr:                 envOr("HTTP_ADDR", ":8080"),
		AllowedOrigins:           os.Getenv("ALLOWED_ORIGINS"),
		Debug:                    envBool("DEBUG", false),
		DebugPort:                envInt("DEBUG_PORT", 5678),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY environment variable not set")
	}

	brokers := envOr("KAFKA_BROKERS", "localhost:9092")
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	switch m := RoundMethod(envOr("ROUND_METHOD_FOR_DISCOUNT", string(RoundFloor))); m {
	case RoundFloor, RoundHalf, RoundCeil:
		cfg.RoundMethodForDiscount = m
	default:
		return nil, fmt.Errorf("ROUND_METHOD_FOR_DISCOUNT must be one of Floor, Round, Ceil; got %q", m)
	}

	return cfg, nil
}

// TokenExpiry returns the JWT lifetime as a duration.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpireMinutes) * time.Minute
}

// ItemCacheTTL returns the master-data cache entry lifetime.
func (c *Config) ItemCacheTTL() time.Duration {
	return time.Duration(c.ItemCacheTTLSeconds) * time.Second
}

// AlertCooldown returns the per-item alert suppression window.
func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownSeconds) * time.Second
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
