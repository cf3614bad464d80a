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

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	RevocationOff    = "off"
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
)

// ErrMissingSecret is fatal at startup: tokens cannot be issued or verified without it.
var ErrMissingSecret = errors.New("APP_SECRET is required")

// Config is the process-wide configuration, read once at startup and passed
// explicitly to the components that need it.
type Config struct {
	Port string

	StorageBackend string
	DatabaseURL    string
	DBMaxConns     int32
	AutoMigrate    bool

	Auth AuthConfig

	LogLevel  string
	LogFormat string

	RevocationBackend string
	RedisURL          string

	// RevocationCapacity caps the memory backend; Logout fails once it is full.
	RevocationCapacity int

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool

	// AuthRateLimit is the sustained per-IP request rate on /user/login and /user/register.
	AuthRateLimit float64
	AuthRateBurst int

	IdempotencyRetention time.Duration
}

type AuthConfig struct {
	Secret     []byte
	TokenTTL   time.Duration
	Issuer     string
	BcryptCost int
}

// Load reads an optional .env file (ignored if missing) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function (os.Getenv in production).
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:              get("PORT", "8080"),
		StorageBackend:    strings.ToLower(get("STORAGE_BACKEND", StorageMemory)),
		DatabaseURL:       get("DATABASE_URL", ""),
		LogLevel:          get("LOG_LEVEL", "info"),
		LogFormat:         get("LOG_FORMAT", "text"),
		RevocationBackend: strings.ToLower(get("REVOCATION_BACKEND", RevocationOff)),
		RedisURL:          get("REDIS_URL", ""),
		Auth: AuthConfig{
			Issuer: get("TOKEN_ISSUER", "address-book-api"),
		},
	}

	secret := getenv("APP_SECRET")
	if strings.TrimSpace(secret) == "" {
		return Config{}, ErrMissingSecret
	}
	cfg.Auth.Secret = []byte(secret)

	var err error
	if cfg.Auth.TokenTTL, err = parseTTL(get("TOKEN_EXPIRES_IN", "1h")); err != nil {
		return Config{}, fmt.Errorf("TOKEN_EXPIRES_IN must be seconds (3600), days (30d) or a Go duration (1h30m): %w", err)
	}
	if cfg.Auth.BcryptCost, err = strconv.Atoi(get("BCRYPT_COST", "10")); err != nil {
		return Config{}, fmt.Errorf("BCRYPT_COST must be an integer: %w", err)
	}
	maxConns, err := strconv.ParseInt(get("DB_MAX_CONNS", "0"), 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be an integer: %w", err)
	}
	cfg.DBMaxConns = int32(maxConns)
	if cfg.AutoMigrate, err = strconv.ParseBool(get("AUTO_MIGRATE", "false")); err != nil {
		return Config{}, fmt.Errorf("AUTO_MIGRATE must be a boolean: %w", err)
	}
	if cfg.AuthRateLimit, err = strconv.ParseFloat(get("AUTH_RATE_LIMIT", "5"), 64); err != nil {
		return Config{}, fmt.Errorf("AUTH_RATE_LIMIT must be a number: %w", err)
	}
	if cfg.AuthRateBurst, err = strconv.Atoi(get("AUTH_RATE_BURST", "10")); err != nil {
		return Config{}, fmt.Errorf("AUTH_RATE_BURST must be an integer: %w", err)
	}
	if cfg.RevocationCapacity, err = strconv.Atoi(get("REVOCATION_CAPACITY", "100000")); err != nil || cfg.RevocationCapacity <= 0 {
		return Config{}, errors.New("REVOCATION_CAPACITY must be a positive integer")
	}
	if cfg.TrustProxy, err = strconv.ParseBool(get("TRUST_PROXY", "false")); err != nil {
		return Config{}, fmt.Errorf("TRUST_PROXY must be a boolean: %w", err)
	}
	if cfg.IdempotencyRetention, err = time.ParseDuration(get("IDEMPOTENCY_RETENTION", "24h")); err != nil {
		return Config{}, fmt.Errorf("IDEMPOTENCY_RETENTION must be a duration (e.g. 24h): %w", err)
	}

	switch cfg.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.StorageBackend)
	}

	switch cfg.RevocationBackend {
	case RevocationOff, RevocationMemory:
	case RevocationRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL is required when REVOCATION_BACKEND=redis")
		}
	default:
		return Config{}, fmt.Errorf("REVOCATION_BACKEND must be off, memory or redis, got %q", cfg.RevocationBackend)
	}

	return cfg, nil
}

// parseTTL accepts bare seconds ("3600"), whole days ("30d") and Go
// durations ("90m").
func parseTTL(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", v)
		}
		if n <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
