package main

import (
	"context"
	"testing"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenStore_MemorySeed(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()
	cfg.AdminClientID = "admin"
	cfg.AdminClientSecret = "adm1n-s3cret"

	st, err := openStore(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()
	assert.Nil(t, st.pinger)
	assert.Nil(t, st.purge)

	require.NoError(t, seed(ctx, st, cfg, zap.NewNop()))
	assert.Equal(t, []string{"read", "write"}, cfg.Scopes)

	scopes, err := st.repos.Scopes.GetAllByIdentifiers(ctx, []string{"read", "write", "clients:admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write", "clients:admin"}, domain.ScopeNames(scopes))

	admin, err := st.repos.Clients.GetByIdentifier(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.AllowsGrant(domain.GrantClientCredentials))
	assert.False(t, admin.AllowsGrant(domain.GrantPassword))

	valid, err := st.repos.Clients.IsClientValid(ctx, domain.GrantClientCredentials, admin, "adm1n-s3cret")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSeed_WithoutAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()

	st, err := openStore(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, seed(ctx, st, cfg, zap.NewNop()))
	_, err = st.repos.Clients.GetByIdentifier(ctx, "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	scopes, err := st.repos.Scopes.GetAllByIdentifiers(ctx, []string{"clients:admin"})
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestRunPurge(t *testing.T) {
	calls := make(chan time.Time, 1)
	st := &store{purge: func(_ context.Context, now time.Time) error {
		select {
		case calls <- now:
		default:
		}
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runPurge(ctx, st, 10*time.Millisecond, zap.NewNop())
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("purge was not called")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runPurge did not stop")
	}
}

func TestNewJWTService(t *testing.T) {
	cfg := config.NewConfig()
	cfg.JWTSecret = "an-hmac-secret-of-at-least-32-bytes!"
	svc, err := newJWTService(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "HS256", svc.SigningMethod().Alg())

	cfg.JWTKeyPath = t.TempDir() + "/jwt.pem"
	svc, err = newJWTService(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "RS256", svc.SigningMethod().Alg())
}
