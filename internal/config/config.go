package config

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Tokens
	TokenTTL        time.Duration
	RefreshTokenTTL time.Duration
	CookieSecure    bool

	// Signed image links
	ImageLinkSecret string
	ImageLinkTTL    time.Duration

	// Uploads
	UploadFolder     string
	MaxContentLength int

	// Bootstrap admin (populate command)
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	// Server
	Port        string
	CORSOrigins string
	AppEnv      string
	LogLevel    string
	SentryDSN   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", "app.db"),

		TokenTTL:        parseDuration(getEnv("TOKEN_TTL", "1h"), time.Hour),
		RefreshTokenTTL: parseDuration(getEnv("REFRESH_TOKEN_TTL", "2400h"), 100*24*time.Hour),
		CookieSecure:    parseBool(getEnv("COOKIE_SECURE", "true"), true),

		ImageLinkSecret: getEnv("IMAGE_LINK_SECRET", ""),
		ImageLinkTTL:    parseDuration(getEnv("IMAGE_LINK_TTL", "10m"), 10*time.Minute),

		UploadFolder:     getEnv("UPLOAD_FOLDER", "images"),
		MaxContentLength: parseInt(getEnv("MAX_CONTENT_LENGTH", "8000000"), 8*1000*1000),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
	}

	if cfg.ImageLinkSecret == "" {
		// Links signed with a per-process key stop verifying after a restart.
		cfg.ImageLinkSecret = randomSecret()
	}

	return cfg
}

// IsPostgres reports whether DatabaseURL points at a PostgreSQL server.
// Anything else is treated as an SQLite database path or DSN.
func (c *Config) IsPostgres() bool {
	u := c.DatabaseURL
	return strings.HasPrefix(u, "postgres://") ||
		strings.HasPrefix(u, "postgresql://") ||
		strings.Contains(u, "host=")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("config: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
