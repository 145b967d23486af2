package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupRedis starts a Redis container and skips the test when Docker is unavailable
func setupRedis(t *testing.T) rueidis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(ctx, Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	if err != nil {
		t.Skipf("Cannot connect to Redis, skipping test: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func persistCode(t *testing.T, repo *AuthCodeRepository, ttl time.Duration) *domain.AuthCode {
	t.Helper()
	ctx := context.Background()
	code, err := repo.IssueAuthCode(ctx, &domain.Client{ID: "web"}, &domain.User{ID: "user-1"}, []*domain.Scope{{Name: "read"}})
	require.NoError(t, err)
	code.ExpiresAt = time.Now().Add(ttl)
	code.RedirectURI = "https://app/cb"
	require.NoError(t, repo.Persist(ctx, code))
	return code
}

func TestAuthCodeRepository_Lifecycle(t *testing.T) {
	client := setupRedis(t)
	repo := NewAuthCodeRepository(client, zap.NewNop())
	ctx := context.Background()

	code := persistCode(t, repo, time.Minute)

	got, err := repo.GetByIdentifier(ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, "web", got.ClientID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, code.FamilyID, got.FamilyID)
	assert.Equal(t, []string{"read"}, domain.ScopeNames(got.Scopes))
	assert.False(t, got.Revoked)

	revoked, err := repo.IsRevoked(ctx, code.Code)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, code.Code))
	assert.ErrorIs(t, repo.Revoke(ctx, code.Code), domain.ErrAlreadyRevoked)

	revoked, err = repo.IsRevoked(ctx, code.Code)
	require.NoError(t, err)
	assert.True(t, revoked)

	got, err = repo.GetByIdentifier(ctx, code.Code)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestAuthCodeRepository_Missing(t *testing.T) {
	client := setupRedis(t)
	repo := NewAuthCodeRepository(client, zap.NewNop())
	ctx := context.Background()

	_, err := repo.GetByIdentifier(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.IsRevoked(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Revoke(ctx, "missing"), domain.ErrNotFound)
}

func TestAuthCodeRepository_RejectsExpired(t *testing.T) {
	client := setupRedis(t)
	repo := NewAuthCodeRepository(client, zap.NewNop())

	code := &domain.AuthCode{Code: domain.NewID(), ClientID: "web", ExpiresAt: time.Now().Add(-time.Second)}
	assert.Error(t, repo.Persist(context.Background(), code))
}

func TestAuthCodeRepository_ConcurrentRevoke(t *testing.T) {
	client := setupRedis(t)
	repo := NewAuthCodeRepository(client, zap.NewNop())
	code := persistCode(t, repo, time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.Revoke(context.Background(), code.Code) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, int64(1), ttlSeconds(10*time.Millisecond))
	assert.Equal(t, int64(2), ttlSeconds(1500*time.Millisecond))
	assert.Equal(t, int64(60), ttlSeconds(time.Minute))
}
