package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv          string
	LogLevel        string
	Port            string
	Store           string
	DatabaseURL     string
	JWTSecret       string
	SessionTTL      time.Duration
	GeoIPDBPath     string
	GoogleClientID  string
	GoogleIssuer    string
	DefaultRole     string
	BootstrapAdmins []string
	DefaultLocale   string
	Currency        string
	CORSOrigins     []string

	ImportConcurrency int
	BookIdleTTL       time.Duration
	AuditTimeout      time.Duration
	AuditListLimit    int
	WriteTimeout      time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	return load(true)
}

// LoadToolConfig is LoadConfig for operator tools, which never sign sessions
// and so do not need JWT_SECRET.
func LoadToolConfig() (*Config, error) {
	return load(false)
}

func load(server bool) (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		Port:              getEnv("PORT", "8080"),
		Store:             strings.ToLower(getEnv("STORE", StorePostgres)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SessionTTL:        getEnvSeconds("SESSION_TTL_SECONDS", 12*60*60),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		GoogleClientID:    os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuer:      getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),
		DefaultRole:       getEnv("DEFAULT_ROLE", "viewer"),
		BootstrapAdmins:   getEnvList("BOOTSTRAP_ADMINS"),
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "en-IN"),
		Currency:          strings.ToUpper(getEnv("CURRENCY", "INR")),
		CORSOrigins:       getEnvList("CORS_ORIGINS"),
		ImportConcurrency: getEnvInt("IMPORT_CONCURRENCY", 4),
		BookIdleTTL:       getEnvSeconds("BOOK_IDLE_TTL_SECONDS", 300),
		AuditTimeout:      getEnvSeconds("AUDIT_TIMEOUT_SECONDS", 10),
		AuditListLimit:    getEnvInt("AUDIT_LIST_LIMIT", 200),
		WriteTimeout:      getEnvSeconds("WRITE_TIMEOUT_SECONDS", 120),
		HTTPReadTimeout:   getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout:  getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 0),
		HTTPIdleTimeout:   getEnvSeconds("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}

	if server && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.ImportConcurrency < 1 {
		return nil, fmt.Errorf("IMPORT_CONCURRENCY must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallback))
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
