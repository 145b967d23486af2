package application

import (
	"context"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockClientRepository is a mock implementation of domain.ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) GetByIdentifier(ctx context.Context, clientID string) (*domain.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockClientRepository) IsClientValid(ctx context.Context, grant domain.GrantIdentifier, client *domain.Client, secret string) (bool, error) {
	args := m.Called(ctx, grant, client, secret)
	return args.Bool(0), args.Error(1)
}

// MockScopeRepository is a mock implementation of domain.ScopeRepository
type MockScopeRepository struct {
	mock.Mock
}

func (m *MockScopeRepository) GetAllByIdentifiers(ctx context.Context, names []string) ([]*domain.Scope, error) {
	args := m.Called(ctx, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Scope), args.Error(1)
}

func (m *MockScopeRepository) Finalize(ctx context.Context, scopes []*domain.Scope, grant domain.GrantIdentifier, client *domain.Client, userID string) ([]*domain.Scope, error) {
	args := m.Called(ctx, scopes, grant, client, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Scope), args.Error(1)
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByIdentifier(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByCredentials(ctx context.Context, identifier, password string, grant domain.GrantIdentifier, client *domain.Client) (*domain.User, error) {
	args := m.Called(ctx, identifier, password, grant, client)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockAuthCodeRepository is a mock implementation of domain.AuthCodeRepository
type MockAuthCodeRepository struct {
	mock.Mock
}

func (m *MockAuthCodeRepository) GetByIdentifier(ctx context.Context, code string) (*domain.AuthCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthCode), args.Error(1)
}

func (m *MockAuthCodeRepository) IssueAuthCode(ctx context.Context, client *domain.Client, user *domain.User, scopes []*domain.Scope) (*domain.AuthCode, error) {
	args := m.Called(ctx, client, user, scopes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthCode), args.Error(1)
}

func (m *MockAuthCodeRepository) Persist(ctx context.Context, code *domain.AuthCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockAuthCodeRepository) IsRevoked(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthCodeRepository) Revoke(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// MockTokenRepository is a mock implementation of domain.TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) IssueToken(ctx context.Context, client *domain.Client, scopes []*domain.Scope, user *domain.User) (*domain.AccessToken, error) {
	args := m.Called(ctx, client, scopes, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccessToken), args.Error(1)
}

func (m *MockTokenRepository) IssueRefreshToken(ctx context.Context, access *domain.AccessToken) (*domain.RefreshToken, error) {
	args := m.Called(ctx, access)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *MockTokenRepository) Persist(ctx context.Context, token *domain.AccessToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) PersistRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) RevokeAccessToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) GetByRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *MockTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	args := m.Called(ctx, familyID)
	return args.Error(0)
}

// MockJWT is a mock implementation of domain.JWT
type MockJWT struct {
	mock.Mock
}

func (m *MockJWT) Sign(ctx context.Context, claims domain.Claims) (string, error) {
	args := m.Called(ctx, claims)
	return args.String(0), args.Error(1)
}

func (m *MockJWT) Verify(ctx context.Context, token string) (domain.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Claims), args.Error(1)
}

type mocks struct {
	clients   *MockClientRepository
	scopes    *MockScopeRepository
	users     *MockUserRepository
	authCodes *MockAuthCodeRepository
	tokens    *MockTokenRepository
	jwt       *MockJWT
}

func newMocks() *mocks {
	return &mocks{
		clients:   new(MockClientRepository),
		scopes:    new(MockScopeRepository),
		users:     new(MockUserRepository),
		authCodes: new(MockAuthCodeRepository),
		tokens:    new(MockTokenRepository),
		jwt:       new(MockJWT),
	}
}

func (m *mocks) repositories() Repositories {
	return Repositories{
		Clients:   m.clients,
		Scopes:    m.scopes,
		Users:     m.users,
		AuthCodes: m.authCodes,
		Tokens:    m.tokens,
	}
}
