package config

import (
	"testing"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, StoreMemory, cfg.StoreType)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.AuthCodeTTL)
	assert.True(t, cfg.RequiresPKCE)
	assert.Equal(t, domain.AllGrants, cfg.EnabledGrants)
	assert.Equal(t, float64(20), cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
	assert.Equal(t, []string{"read", "write"}, cfg.Scopes)
	assert.Empty(t, cfg.JWTKeyPath)
}

func TestLoadConfig(t *testing.T) {
	base := map[string]string{
		"PORT":              "9090",
		"ENVIRONMENT":       "test",
		"STORE_TYPE":        "postgres",
		"DB_HOST":           "db",
		"DB_PORT":           "5433",
		"DB_USER":           "postgres",
		"DB_PASSWORD":       "postgres",
		"DB_NAME":           "oauth2_test",
		"REDIS_ADDR":        "redis:6379",
		"REDIS_DB":          "2",
		"JWT_SECRET":        "an-hmac-secret-of-at-least-32-bytes!",
		"ACCESS_TOKEN_TTL":  "15m",
		"REFRESH_TOKEN_TTL": "24h",
		"AUTH_CODE_TTL":     "5m",
		"REQUIRES_PKCE":     "false",
		"ENABLED_GRANTS":    "refresh_token, authorization_code,refresh_token",
		"RATE_LIMIT_RPS":    "2.5",
		"RATE_LIMIT_BURST":  "5",
		"TRACING_ENABLED":   "true",
		"SCOPES":            "read, write,,profile",
		"ADMIN_CLIENT_ID":   "admin",
	}

	tests := []struct {
		name     string
		override map[string]string
		wantErr  bool
	}{
		{name: "valid config"},
		{name: "invalid db port", override: map[string]string{"DB_PORT": "invalid"}, wantErr: true},
		{name: "invalid server port", override: map[string]string{"PORT": "invalid"}, wantErr: true},
		{name: "invalid access ttl", override: map[string]string{"ACCESS_TOKEN_TTL": "an hour"}, wantErr: true},
		{name: "invalid refresh ttl", override: map[string]string{"REFRESH_TOKEN_TTL": "invalid"}, wantErr: true},
		{name: "invalid pkce flag", override: map[string]string{"REQUIRES_PKCE": "sometimes"}, wantErr: true},
		{name: "unknown grant", override: map[string]string{"ENABLED_GRANTS": "password,device_code"}, wantErr: true},
		{name: "unknown store", override: map[string]string{"STORE_TYPE": "mongo"}, wantErr: true},
		{name: "invalid burst", override: map[string]string{"RATE_LIMIT_BURST": "lots"}, wantErr: true},
		{name: "invalid redis db", override: map[string]string{"REDIS_DB": "zero"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range base {
				t.Setenv(k, v)
			}
			for k, v := range tt.override {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, 9090, cfg.ServerPort)
			assert.Equal(t, StorePostgres, cfg.StoreType)
			assert.Equal(t, "postgres://postgres:postgres@db:5433/oauth2_test?sslmode=disable", cfg.DatabaseURL())
			assert.Equal(t, "redis:6379", cfg.RedisAddr)
			assert.Equal(t, 2, cfg.RedisDB)
			assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
			assert.Equal(t, 24*time.Hour, cfg.RefreshTokenTTL)
			assert.Equal(t, 5*time.Minute, cfg.AuthCodeTTL)
			assert.False(t, cfg.RequiresPKCE)
			assert.Equal(t, []domain.GrantIdentifier{domain.GrantRefreshToken, domain.GrantAuthorizationCode}, cfg.EnabledGrants)
			assert.Equal(t, 2.5, cfg.RateLimitRPS)
			assert.Equal(t, 5, cfg.RateLimitBurst)
			assert.True(t, cfg.TracingEnabled)
			assert.Equal(t, []string{"read", "write", "profile"}, cfg.Scopes)
			assert.Equal(t, "admin", cfg.AdminClientID)
			assert.False(t, cfg.IsDevelopment())
		})
	}
}
