package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Session    SessionConfig
	JWT        JWTConfig
	Stripe     StripeConfig
	Cloudinary CloudinaryConfig
	Redis      RedisConfig
	SMTP       SMTPConfig
	Jobs       JobsConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxIdle  int
	MaxOpen  int
}

// DSN prefers DATABASE_URL and falls back to the individual DB_* settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type SessionConfig struct {
	TTLDays      int
	CookieSecure bool
}

type JWTConfig struct {
	Secret          string
	WSTicketMinutes int
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

func (s StripeConfig) Enabled() bool { return s.SecretKey != "" }

type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

// ConnectionURL builds the cloudinary:// URL from the split settings when CLOUDINARY_URL is unset.
func (c CloudinaryConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	if c.CloudName == "" || c.APIKey == "" || c.APISecret == "" {
		return ""
	}
	return fmt.Sprintf("cloudinary://%s:%s@%s", c.APIKey, c.APISecret, c.CloudName)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (s SMTPConfig) Enabled() bool { return s.Host != "" && s.From != "" }

type JobsConfig struct {
	PaymentPollSpec  string
	SessionSweepSpec string
}

var AppConfig *Config

func Load() {
	AppConfig = &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			GinMode:        getEnv("GIN_MODE", "debug"),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", os.Getenv("DB_URL")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "handyconnect"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxIdle:  getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpen:  getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		},
		Session: SessionConfig{
			TTLDays:      getEnvAsInt("SESSION_TTL_DAYS", 7),
			CookieSecure: getEnvAsBool("COOKIE_SECURE", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-this-secret-in-production"),
			WSTicketMinutes: getEnvAsInt("WS_TICKET_MINUTES", 5),
		},
		Stripe: StripeConfig{
			SecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			Currency:  getEnv("STRIPE_CURRENCY", "mad"),
		},
		Cloudinary: CloudinaryConfig{
			URL:       os.Getenv("CLOUDINARY_URL"),
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Jobs: JobsConfig{
			PaymentPollSpec:  getEnv("PAYMENT_POLL_SPEC", "@every 2m"),
			SessionSweepSpec: getEnv("SESSION_SWEEP_SPEC", "@hourly"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
