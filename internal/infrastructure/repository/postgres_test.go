package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/config"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"github.com/manorfm/oauth2server/internal/infrastructure/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var (
	sharedDB   *database.Postgres
	sharedOnce sync.Once
	sharedErr  error
)

// setupTestDB starts one Postgres container per test binary and applies the migrations
func setupTestDB(t *testing.T) *database.Postgres {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	sharedOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:15-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_USER":     "test",
					"POSTGRES_PASSWORD": "test",
					"POSTGRES_DB":       "test",
				},
				WaitingFor: wait.ForAll(
					wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
					wait.ForListeningPort("5432/tcp"),
				),
			},
			Started: true,
		})
		if err != nil {
			sharedErr = err
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			sharedErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			sharedErr = err
			return
		}

		cfg := config.NewConfig()
		cfg.DBHost = host
		cfg.DBPort = port.Int()
		cfg.DBUser = "test"
		cfg.DBPassword = "test"
		cfg.DBName = "test"

		db, err := database.NewPostgres(ctx, cfg, zap.NewNop())
		if err != nil {
			sharedErr = err
			return
		}
		if err := db.RunMigrations("../../../migrations"); err != nil {
			sharedErr = err
			return
		}
		sharedDB = db
	})
	if sharedErr != nil {
		t.Skipf("Postgres container not available, skipping test: %v", sharedErr)
	}

	ctx := context.Background()
	require.NoError(t, sharedDB.Exec(ctx, `
		TRUNCATE TABLE oauth2_refresh_tokens, oauth2_access_tokens, oauth2_auth_codes, users, oauth2_scopes, oauth2_clients CASCADE
	`))
	return sharedDB
}

func seedClient(t *testing.T, repo *ClientRepository, client *domain.Client) {
	t.Helper()
	require.NoError(t, repo.CreateClient(context.Background(), client))
}

func TestClientRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewClientRepository(db, zap.NewNop())

	seedClient(t, repo, &domain.Client{
		ID:           "web",
		Name:         "Web App",
		RedirectURIs: []string{"https://app/cb"},
		Grants:       []domain.GrantIdentifier{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		Scopes:       []string{"read"},
	})
	seedClient(t, repo, &domain.Client{ID: "svc", Name: "Service", Secret: "s3cret"})

	client, err := repo.GetByIdentifier(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "Web App", client.Name)
	assert.Equal(t, []string{"https://app/cb"}, client.RedirectURIs)
	assert.Equal(t, []domain.GrantIdentifier{domain.GrantAuthorizationCode, domain.GrantRefreshToken}, client.Grants)
	assert.Equal(t, []string{"read"}, client.Scopes)

	_, err = repo.GetByIdentifier(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	valid, err := repo.IsClientValid(ctx, domain.GrantPassword, client, "")
	require.NoError(t, err)
	assert.False(t, valid, "grant not registered")

	svc, err := repo.GetByIdentifier(ctx, "svc")
	require.NoError(t, err)
	valid, _ = repo.IsClientValid(ctx, domain.GrantClientCredentials, svc, "s3cret")
	assert.True(t, valid)
	valid, _ = repo.IsClientValid(ctx, domain.GrantClientCredentials, svc, "wrong")
	assert.False(t, valid)

	clients, err := repo.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	require.NoError(t, repo.DeleteClient(ctx, "svc"))
	assert.ErrorIs(t, repo.DeleteClient(ctx, "svc"), domain.ErrNotFound)
}

func TestScopeRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewScopeRepository(db, zap.NewNop())

	require.NoError(t, repo.SaveScope(ctx, &domain.Scope{Name: "read", Description: "Read access"}))
	require.NoError(t, repo.SaveScope(ctx, &domain.Scope{Name: "write", Metadata: map[string]string{"tier": "gold"}}))

	scopes, err := repo.GetAllByIdentifiers(ctx, []string{"write", "bogus", "read"})
	require.NoError(t, err)
	assert.Equal(t, []string{"write", "read"}, domain.ScopeNames(scopes))
	assert.Equal(t, "gold", scopes[0].Metadata["tier"])

	final, err := repo.Finalize(ctx, scopes, domain.GrantPassword, &domain.Client{ID: "web", Scopes: []string{"read"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, domain.ScopeNames(final))

	require.NoError(t, repo.SaveScope(ctx, &domain.Scope{Name: domain.AdminScope}))
	withAdmin, err := repo.GetAllByIdentifiers(ctx, []string{"read", domain.AdminScope})
	require.NoError(t, err)
	final, err = repo.Finalize(ctx, withAdmin, domain.GrantPassword, &domain.Client{ID: "open"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, domain.ScopeNames(final))
	final, err = repo.Finalize(ctx, withAdmin, domain.GrantClientCredentials, &domain.Client{ID: "admin", Scopes: []string{domain.AdminScope}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.AdminScope}, domain.ScopeNames(final))
}

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db, zap.NewNop())

	hash, err := password.HashPassword("wonderland")
	require.NoError(t, err)
	user := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: hash}
	require.NoError(t, repo.CreateUser(ctx, user))
	require.NotEmpty(t, user.ID)

	got, err := repo.GetByIdentifier(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	client := &domain.Client{ID: "web"}
	got, err = repo.GetUserByCredentials(ctx, "alice", "wonderland", domain.GrantPassword, client)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetUserByCredentials(ctx, "alice", "nope", domain.GrantPassword, client)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = repo.GetUserByCredentials(ctx, "bob", "x", domain.GrantPassword, client)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	fields, err := repo.ExtraAccessTokenFields(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "alice", fields["username"])
	assert.Equal(t, "alice@example.com", fields["email"])
}

func TestAuthCodeRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	clients := NewClientRepository(db, zap.NewNop())
	seedClient(t, clients, &domain.Client{ID: "web"})
	repo := NewAuthCodeRepository(db, zap.NewNop())

	code, err := repo.IssueAuthCode(ctx, &domain.Client{ID: "web"}, nil, []*domain.Scope{{Name: "read"}})
	require.NoError(t, err)
	code.ExpiresAt = time.Now().Add(time.Minute)
	code.RedirectURI = "https://app/cb"
	code.CodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	code.CodeChallengeMethod = domain.CodeChallengeMethodS256
	require.NoError(t, repo.Persist(ctx, code))

	got, err := repo.GetByIdentifier(ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, code.FamilyID, got.FamilyID)
	assert.Equal(t, []string{"read"}, domain.ScopeNames(got.Scopes))
	assert.Equal(t, domain.CodeChallengeMethodS256, got.CodeChallengeMethod)

	revoked, err := repo.IsRevoked(ctx, code.Code)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, code.Code))
	assert.ErrorIs(t, repo.Revoke(ctx, code.Code), domain.ErrAlreadyRevoked)
	assert.ErrorIs(t, repo.Revoke(ctx, "missing"), domain.ErrNotFound)

	revoked, err = repo.IsRevoked(ctx, code.Code)
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := repo.DeleteExpired(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTokenRepository_ConcurrentRefreshRevoke(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedClient(t, NewClientRepository(db, zap.NewNop()), &domain.Client{ID: "web"})
	repo := NewTokenRepository(db, zap.NewNop(), time.Hour)

	access, err := repo.IssueToken(ctx, &domain.Client{ID: "web"}, nil, nil)
	require.NoError(t, err)
	access.FamilyID = domain.NewID()
	access.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, repo.Persist(ctx, access))

	refresh, err := repo.IssueRefreshToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, access.FamilyID, refresh.FamilyID)
	assert.False(t, refresh.ExpiresAt.IsZero())
	require.NoError(t, repo.PersistRefreshToken(ctx, refresh))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.RevokeRefreshToken(ctx, refresh.Token); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestTokenRepository_RevokeFamily(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedClient(t, NewClientRepository(db, zap.NewNop()), &domain.Client{ID: "web"})
	repo := NewTokenRepository(db, zap.NewNop(), 0)
	family := domain.NewID()

	var refreshTokens []string
	for i := 0; i < 2; i++ {
		access, err := repo.IssueToken(ctx, &domain.Client{ID: "web"}, []*domain.Scope{{Name: "read"}}, &domain.User{ID: domain.NewID()})
		require.NoError(t, err)
		access.FamilyID = family
		access.ExpiresAt = time.Now().Add(time.Hour)
		require.NoError(t, repo.Persist(ctx, access))

		refresh, err := repo.IssueRefreshToken(ctx, access)
		require.NoError(t, err)
		assert.True(t, refresh.ExpiresAt.IsZero(), "expiry is left to the engine")
		refresh.ExpiresAt = time.Now().Add(24 * time.Hour)
		require.NoError(t, repo.PersistRefreshToken(ctx, refresh))
		refreshTokens = append(refreshTokens, refresh.Token)
	}

	require.NoError(t, repo.RevokeFamily(ctx, family))

	for _, token := range refreshTokens {
		revoked, err := repo.IsRefreshTokenRevoked(ctx, token)
		require.NoError(t, err)
		assert.True(t, revoked)

		rt, err := repo.GetByRefreshToken(ctx, token)
		require.NoError(t, err)
		access, err := repo.GetAccessToken(ctx, rt.AccessToken)
		require.NoError(t, err)
		assert.True(t, access.Revoked)
		assert.ErrorIs(t, repo.RevokeAccessToken(ctx, access.Token), domain.ErrAlreadyRevoked)
	}

	_, err := repo.GetByRefreshToken(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.RevokeAccessToken(ctx, "missing"), domain.ErrNotFound)

	n, err := repo.DeleteExpired(ctx, time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
