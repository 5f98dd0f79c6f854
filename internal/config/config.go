package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env         string
	ServiceName string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Notify      NotifyConfig
	Marketplace MarketplaceConfig
	Reset       ResetConfig
	RateLimit   RateLimitConfig
	Admin       AdminConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

// NotifyConfig configures the external notification channels.
type NotifyConfig struct {
	// Channel selects the external channel: "sms", "whatsapp" or "" (disabled).
	Channel       string
	ExternalTypes []string
	BatchDelay    time.Duration
	SMS           SMSConfig
	WhatsApp      WhatsAppConfig
}

type SMSConfig struct {
	APIURL string
	APIKey string
	Sender string
}

type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
}

type MarketplaceConfig struct {
	MatchRadiusKm float64
	AutoBid       bool
}

type ResetConfig struct {
	CodeTTL  time.Duration
	TokenTTL time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

type AdminConfig struct {
	Email    string
	Password string
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads configuration from an optional .env file and environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "campusmarket"),
		Server: ServerConfig{
			Address:         getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("POSTGRES_CONN"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
			Issuer:    getEnv("JWT_ISSUER", "campusmarket"),
		},
		Notify: NotifyConfig{
			Channel:       getEnv("NOTIFY_CHANNEL", ""),
			ExternalTypes: getEnvAsList("NOTIFY_EXTERNAL_TYPES", []string{"bid_accepted", "interest_accepted"}),
			BatchDelay:    getEnvAsDuration("NOTIFY_BATCH_DELAY", 500*time.Millisecond),
			SMS: SMSConfig{
				APIURL: getEnv("SMS_API_URL", ""),
				APIKey: getEnv("SMS_API_KEY", ""),
				Sender: getEnv("SMS_SENDER", "CampusMkt"),
			},
			WhatsApp: WhatsAppConfig{
				AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
				PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
				BaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),
			},
		},
		Marketplace: MarketplaceConfig{
			MatchRadiusKm: getEnvAsFloat("MATCH_RADIUS_KM", 50),
			AutoBid:       getEnvAsBool("AUTO_BID_ENABLED", true),
		},
		Reset: ResetConfig{
			CodeTTL:  getEnvAsDuration("RESET_CODE_TTL", 10*time.Minute),
			TokenTTL: getEnvAsDuration("RESET_TOKEN_TTL", 15*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Database.URL == "" {
		return nil, errors.New("POSTGRES_CONN env variable is not set")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET env variable is not set")
	}
	switch cfg.Notify.Channel {
	case "", "sms", "whatsapp":
	default:
		return nil, errors.New("NOTIFY_CHANNEL must be one of: sms, whatsapp")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
