package application

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"github.com/manorfm/oauth2server/internal/infrastructure/instrumentation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestToolkit(m *mocks, id domain.GrantIdentifier, opts ...Option) *grantToolkit {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newGrantToolkit(id, m.repositories(), m.jwt, &o, instrumentation.NewNop().Metrics(), zap.NewNop())
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestGrantToolkit_ValidateClient(t *testing.T) {
	confidential := &domain.Client{ID: "svc", Name: "Service", Secret: "s3cret"}

	tests := []struct {
		name      string
		grant     domain.GrantIdentifier
		req       *domain.Request
		setupMock func(*mocks)
		wantCode  string
		wantErr   bool
	}{
		{
			name:  "credentials in body",
			grant: domain.GrantClientCredentials,
			req:   domain.NewRequest(nil, map[string]any{"client_id": "svc", "client_secret": "s3cret"}, nil),
			setupMock: func(m *mocks) {
				m.clients.On("GetByIdentifier", mock.Anything, "svc").Return(confidential, nil)
				m.clients.On("IsClientValid", mock.Anything, domain.GrantClientCredentials, confidential, "s3cret").Return(true, nil)
			},
		},
		{
			name:  "credentials in basic auth",
			grant: domain.GrantClientCredentials,
			req:   domain.NewRequest(nil, nil, map[string]string{"Authorization": basicAuth("svc", "s3cret")}),
			setupMock: func(m *mocks) {
				m.clients.On("GetByIdentifier", mock.Anything, "svc").Return(confidential, nil)
				m.clients.On("IsClientValid", mock.Anything, domain.GrantClientCredentials, confidential, "s3cret").Return(true, nil)
			},
		},
		{
			name:      "missing client id",
			grant:     domain.GrantPassword,
			req:       domain.NewRequest(nil, nil, nil),
			setupMock: func(m *mocks) {},
			wantCode:  apperrors.CodeInvalidRequest,
		},
		{
			name:  "unknown client",
			grant: domain.GrantPassword,
			req:   domain.NewRequest(nil, map[string]any{"client_id": "ghost"}, nil),
			setupMock: func(m *mocks) {
				m.clients.On("GetByIdentifier", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
			},
			wantCode: apperrors.CodeInvalidClient,
		},
		{
			name:  "repository rejects client",
			grant: domain.GrantPassword,
			req:   domain.NewRequest(nil, map[string]any{"client_id": "svc", "client_secret": "nope"}, nil),
			setupMock: func(m *mocks) {
				m.clients.On("GetByIdentifier", mock.Anything, "svc").Return(confidential, nil)
				m.clients.On("IsClientValid", mock.Anything, domain.GrantPassword, confidential, "nope").Return(false, nil)
			},
			wantCode: apperrors.CodeInvalidClient,
		},
		{
			name:  "client credentials requires the exact secret",
			grant: domain.GrantClientCredentials,
			req:   domain.NewRequest(nil, map[string]any{"client_id": "svc", "client_secret": "wrong"}, nil),
			setupMock: func(m *mocks) {
				m.clients.On("GetByIdentifier", mock.Anything, "svc").Return(confidential, nil)
				m.clients.On("IsClientValid", mock.Anything, domain.GrantClientCredentials, confidential, "wrong").Return(true, nil)
			},
			wantCode: apperrors.CodeInvalidClient,
		},
		{
			name:  "repository failure is not a protocol error",
			grant: domain.GrantPassword,
			req:   domain.NewRequest(nil, map[string]any{"client_id": "svc"}, nil),
			setupMock: func(m *mocks) {
				m.clients.On("GetByIdentifier", mock.Anything, "svc").Return(nil, errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			tt.setupMock(m)
			tk := newTestToolkit(m, tt.grant)

			client, err := tk.validateClient(context.Background(), tt.req)

			switch {
			case tt.wantCode != "":
				require.Error(t, err)
				oauthErr, ok := apperrors.AsOAuthError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, oauthErr.Code)
				assert.Nil(t, client)
			case tt.wantErr:
				require.Error(t, err)
				_, ok := apperrors.AsOAuthError(err)
				assert.False(t, ok)
			default:
				require.NoError(t, err)
				assert.Equal(t, "svc", client.ID)
			}
			m.clients.AssertExpectations(t)
		})
	}
}

func TestGrantToolkit_ValidateScopes(t *testing.T) {
	read := &domain.Scope{Name: "read"}
	write := &domain.Scope{Name: "write"}

	t.Run("resolves and dedupes", func(t *testing.T) {
		m := newMocks()
		m.scopes.On("GetAllByIdentifiers", mock.Anything, []string{"read", "write"}).Return([]*domain.Scope{read, write}, nil)
		tk := newTestToolkit(m, domain.GrantPassword)

		scopes, err := tk.validateScopes(context.Background(), "read write read", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"read", "write"}, domain.ScopeNames(scopes))
		m.scopes.AssertExpectations(t)
	})

	t.Run("unknown scope names the offender", func(t *testing.T) {
		m := newMocks()
		m.scopes.On("GetAllByIdentifiers", mock.Anything, []string{"read", "bogus"}).Return([]*domain.Scope{read}, nil)
		tk := newTestToolkit(m, domain.GrantAuthorizationCode)

		_, err := tk.validateScopes(context.Background(), []string{"read", "bogus"}, "https://app/cb")
		require.Error(t, err)
		oauthErr, ok := apperrors.AsOAuthError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeInvalidScope, oauthErr.Code)
		assert.Equal(t, "bogus", oauthErr.Param)
		assert.Equal(t, "https://app/cb", oauthErr.RedirectURI)
	})

	t.Run("empty scope skips the repository", func(t *testing.T) {
		m := newMocks()
		tk := newTestToolkit(m, domain.GrantPassword)

		scopes, err := tk.validateScopes(context.Background(), "", "")
		require.NoError(t, err)
		assert.Empty(t, scopes)
		m.scopes.AssertNotCalled(t, "GetAllByIdentifiers", mock.Anything, mock.Anything)
	})

	t.Run("non string entries are malformed", func(t *testing.T) {
		m := newMocks()
		tk := newTestToolkit(m, domain.GrantPassword)

		_, err := tk.validateScopes(context.Background(), []any{"read", 42}, "")
		assert.True(t, apperrors.IsInvalidRequest(err))
	})
}

func TestGrantToolkit_ResolveRedirectURI(t *testing.T) {
	tk := newTestToolkit(newMocks(), domain.GrantAuthorizationCode)
	single := &domain.Client{ID: "app", RedirectURIs: []string{"https://app/cb"}}
	multi := &domain.Client{ID: "app", RedirectURIs: []string{"https://app/cb", "https://app/other"}}

	uri, err := tk.resolveRedirectURI("", single)
	require.NoError(t, err)
	assert.Equal(t, "https://app/cb", uri)

	_, err = tk.resolveRedirectURI("", multi)
	assert.True(t, apperrors.IsInvalidClient(err))

	_, err = tk.resolveRedirectURI("https://evil/cb", single)
	assert.True(t, apperrors.IsInvalidClient(err))

	uri, err = tk.resolveRedirectURI("https://app/other", multi)
	require.NoError(t, err)
	assert.Equal(t, "https://app/other", uri)
}

func TestGrantToolkit_IssueRefreshToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	access := &domain.AccessToken{Token: "at-1", ClientID: "app", FamilyID: "fam-1"}

	t.Run("declined", func(t *testing.T) {
		m := newMocks()
		m.tokens.On("IssueRefreshToken", mock.Anything, access).Return(nil, nil)
		tk := newTestToolkit(m, domain.GrantPassword, WithClock(func() time.Time { return now }))

		refresh, err := tk.issueRefreshToken(context.Background(), access)
		require.NoError(t, err)
		assert.Nil(t, refresh)
		m.tokens.AssertNotCalled(t, "PersistRefreshToken", mock.Anything, mock.Anything)
	})

	t.Run("fills defaults from the access token", func(t *testing.T) {
		m := newMocks()
		m.tokens.On("IssueRefreshToken", mock.Anything, access).Return(&domain.RefreshToken{Token: "rt-1"}, nil)
		m.tokens.On("PersistRefreshToken", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
		tk := newTestToolkit(m, domain.GrantPassword,
			WithClock(func() time.Time { return now }),
			WithRefreshTokenTTL(2*time.Hour))

		refresh, err := tk.issueRefreshToken(context.Background(), access)
		require.NoError(t, err)
		assert.Equal(t, "fam-1", refresh.FamilyID)
		assert.Equal(t, "at-1", refresh.AccessToken)
		assert.Equal(t, now.Add(2*time.Hour), refresh.ExpiresAt)
		m.tokens.AssertExpectations(t)
	})
}

func TestExpiresIn(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      int64
	}{
		{"whole seconds", now.Add(time.Hour), 3600},
		{"rounds up partial seconds", now.Add(1500 * time.Millisecond), 2},
		{"one millisecond left", now.Add(time.Millisecond), 1},
		{"already expired", now.Add(-time.Minute), 0},
		{"expires now", now, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expiresIn(tt.expiresAt, now))
		})
	}
}

func TestApprovedUser(t *testing.T) {
	id, ok, err := approvedUser(domain.Approved{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	id, ok, err = approvedUser(&domain.Approved{UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u2", id)

	_, ok, err = approvedUser(domain.Denied{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = approvedUser(domain.Approved{})
	assert.ErrorIs(t, err, ErrUserRequired)

	_, _, err = approvedUser(nil)
	assert.ErrorIs(t, err, ErrDecisionRequired)
}

func TestWithQueryAndFragment(t *testing.T) {
	params := map[string][]string{"code": {"abc"}, "state": {"xyz"}}

	assert.Equal(t, "https://app/cb?code=abc&foo=bar&state=xyz", withQuery("https://app/cb?foo=bar", params))
	assert.Equal(t, "https://app/cb#code=abc&state=xyz", withFragment("https://app/cb#old", params))
}

func TestPKCEVerifiers(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", S256Challenge(verifier))
	assert.True(t, s256Verifier{}.Verify(verifier, S256Challenge(verifier)))
	assert.False(t, s256Verifier{}.Verify(verifier, verifier))
	assert.True(t, plainVerifier{}.Verify(verifier, verifier))
	assert.False(t, plainVerifier{}.Verify(verifier, verifier+"x"))

	assert.True(t, isValidPKCEString(verifier))
	assert.False(t, isValidPKCEString("too-short"))
	assert.False(t, isValidPKCEString(verifier+"!"))
}
