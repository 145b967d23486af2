package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/manorfm/oauth2server/internal/domain"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerPort  int
	Environment string

	// Storage configuration
	StoreType  string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration, an empty address keeps auth codes in the main store
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT configuration, JWTSecret selects HS256 when JWTKeyPath is empty
	JWTKeyPath string
	JWTSecret  string

	// Engine configuration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration
	RequiresPKCE    bool
	EnabledGrants   []domain.GrantIdentifier
	// Scopes are registered at startup
	Scopes []string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Observability
	TracingEnabled bool

	// Bootstrap admin client, registered at startup when both are set
	AdminClientID     string
	AdminClientSecret string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ServerPort:  8080,
		Environment: "production",

		StoreType: StoreMemory,
		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "owner",
		DBName:    "oauth2",

		AccessTokenTTL:  domain.DefaultAccessTokenTTL,
		RefreshTokenTTL: 720 * time.Hour,
		AuthCodeTTL:     15 * time.Minute,
		RequiresPKCE:    true,
		EnabledGrants:   append([]domain.GrantIdentifier(nil), domain.AllGrants...),
		Scopes:          []string{"read", "write"},

		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	cfg := NewConfig()
	var err error

	if cfg.ServerPort, err = getEnvInt("PORT", cfg.ServerPort); err != nil {
		return nil, err
	}
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.StoreType = strings.ToLower(getEnv("STORE_TYPE", cfg.StoreType))
	if cfg.StoreType != StoreMemory && cfg.StoreType != StorePostgres {
		return nil, fmt.Errorf("STORE_TYPE must be %q or %q, got %q", StoreMemory, StorePostgres, cfg.StoreType)
	}
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	if cfg.DBPort, err = getEnvInt("DB_PORT", cfg.DBPort); err != nil {
		return nil, err
	}
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}

	cfg.JWTKeyPath = getEnv("JWT_KEY_PATH", cfg.JWTKeyPath)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)

	if cfg.AccessTokenTTL, err = getEnvDuration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getEnvDuration("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}
	if cfg.AuthCodeTTL, err = getEnvDuration("AUTH_CODE_TTL", cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	if cfg.RequiresPKCE, err = getEnvBool("REQUIRES_PKCE", cfg.RequiresPKCE); err != nil {
		return nil, err
	}
	if raw, ok := os.LookupEnv("ENABLED_GRANTS"); ok {
		if cfg.EnabledGrants, err = parseGrants(raw); err != nil {
			return nil, err
		}
	}

	if raw, ok := os.LookupEnv("SCOPES"); ok {
		cfg.Scopes = splitList(raw)
	}

	if cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}

	if cfg.TracingEnabled, err = getEnvBool("TRACING_ENABLED", cfg.TracingEnabled); err != nil {
		return nil, err
	}
	cfg.AdminClientID = getEnv("ADMIN_CLIENT_ID", cfg.AdminClientID)
	cfg.AdminClientSecret = getEnv("ADMIN_CLIENT_SECRET", cfg.AdminClientSecret)

	return cfg, nil
}

// DatabaseURL returns the postgres connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// parseGrants reads a comma separated grant list, keeping order and dropping duplicates
func parseGrants(raw string) ([]domain.GrantIdentifier, error) {
	var grants []domain.GrantIdentifier
	seen := make(map[domain.GrantIdentifier]struct{})
	for _, part := range strings.Split(raw, ",") {
		id := domain.GrantIdentifier(strings.TrimSpace(part))
		if id == "" {
			continue
		}
		if !id.IsValid() {
			return nil, fmt.Errorf("ENABLED_GRANTS: unknown grant type %q", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		grants = append(grants, id)
	}
	return grants, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return intValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
