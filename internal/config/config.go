package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LogLevel    string
	AppPort     int
	CORSOrigins []string

	// Storage selects the persistence backend: "postgres" or "memory".
	Storage string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL    string
	RabbitMQURL string

	JWTSecret string
	JWTTTL    time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTimeout time.Duration

	AdminEmail    string
	AdminPassword string

	FirebaseServiceAccountPath string
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "haulbook"))
	cfg.LogLevel = cast.ToString(getOrReturnDefault("LOG_LEVEL", "info"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))
	cfg.CORSOrigins = splitList(cast.ToString(getOrReturnDefault("CORS_ALLOWED_ORIGINS", "*")))

	cfg.Storage = strings.ToLower(cast.ToString(getOrReturnDefault("STORAGE", "postgres")))

	cfg.DBHost = cast.ToString(getOrReturnDefault("DB_HOST", "localhost"))
	cfg.DBPort = cast.ToString(getOrReturnDefault("DB_PORT", "5432"))
	cfg.DBUser = cast.ToString(getOrReturnDefault("DB_USER", "postgres"))
	cfg.DBPassword = cast.ToString(getOrReturnDefault("DB_PASSWORD", "postgres"))
	cfg.DBName = cast.ToString(getOrReturnDefault("DB_NAME", "haulbook"))
	cfg.DBSSLMode = cast.ToString(getOrReturnDefault("DB_SSLMODE", "disable"))

	cfg.RedisURL = cast.ToString(getOrReturnDefault("REDIS_URL", ""))
	cfg.RabbitMQURL = cast.ToString(getOrReturnDefault("RABBITMQ_URL", ""))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", ""))
	cfg.JWTTTL = time.Duration(cast.ToInt(getOrReturnDefault("JWT_TTL_HOURS", 168))) * time.Hour

	cfg.SMTPHost = cast.ToString(getOrReturnDefault("SMTP_HOST", ""))
	cfg.SMTPPort = cast.ToInt(getOrReturnDefault("SMTP_PORT", 587))
	cfg.SMTPUsername = cast.ToString(getOrReturnDefault("SMTP_USERNAME", ""))
	cfg.SMTPPassword = cast.ToString(getOrReturnDefault("SMTP_PASSWORD", ""))
	cfg.EmailFrom = cast.ToString(getOrReturnDefault("EMAIL_FROM", "no-reply@haulbook.local"))
	cfg.EmailTimeout = time.Duration(cast.ToInt(getOrReturnDefault("EMAIL_TIMEOUT_SECONDS", 5))) * time.Second

	cfg.AdminEmail = cast.ToString(getOrReturnDefault("ADMIN_EMAIL", ""))
	cfg.AdminPassword = cast.ToString(getOrReturnDefault("ADMIN_PASSWORD", ""))

	cfg.FirebaseServiceAccountPath = cast.ToString(getOrReturnDefault("FIREBASE_SERVICE_ACCOUNT_PATH", ""))

	return cfg
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE %q", c.Storage)
	}
	if c.EmailTimeout <= 0 {
		return fmt.Errorf("EMAIL_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// PostgresDSN returns the connection string in the key=value form the gorm driver accepts.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
