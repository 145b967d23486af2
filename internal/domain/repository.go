package domain

import "context"

// ClientRepository looks up and authenticates clients
type ClientRepository interface {
	GetByIdentifier(ctx context.Context, clientID string) (*Client, error)
	// IsClientValid reports whether the client may use grant with the supplied secret
	IsClientValid(ctx context.Context, grant GrantIdentifier, client *Client, secret string) (bool, error)
}

// ScopeRepository resolves requested scope names
type ScopeRepository interface {
	// GetAllByIdentifiers returns the known scopes among names. Unknown names are omitted, not errors.
	GetAllByIdentifiers(ctx context.Context, names []string) ([]*Scope, error)
	// Finalize may narrow or expand the scopes granted to a client right before issuance
	Finalize(ctx context.Context, scopes []*Scope, grant GrantIdentifier, client *Client, userID string) ([]*Scope, error)
}

// UserRepository owns resource-owner authentication
type UserRepository interface {
	GetByIdentifier(ctx context.Context, userID string) (*User, error)
	// GetUserByCredentials returns ErrInvalidCredentials or ErrNotFound on mismatch
	GetUserByCredentials(ctx context.Context, identifier, password string, grant GrantIdentifier, client *Client) (*User, error)
}

// ExtraAccessTokenFieldsProvider is optionally implemented by a UserRepository to add claims to access tokens
type ExtraAccessTokenFieldsProvider interface {
	ExtraAccessTokenFields(ctx context.Context, user *User) (map[string]any, error)
}

// AuthCodeRepository mints and stores authorization codes
type AuthCodeRepository interface {
	GetByIdentifier(ctx context.Context, code string) (*AuthCode, error)
	IssueAuthCode(ctx context.Context, client *Client, user *User, scopes []*Scope) (*AuthCode, error)
	Persist(ctx context.Context, code *AuthCode) error
	IsRevoked(ctx context.Context, code string) (bool, error)
	// Revoke must be an atomic check-and-set: a second call returns ErrAlreadyRevoked
	Revoke(ctx context.Context, code string) error
}

// TokenRepository mints and stores access and refresh tokens
type TokenRepository interface {
	IssueToken(ctx context.Context, client *Client, scopes []*Scope, user *User) (*AccessToken, error)
	// IssueRefreshToken may decline by returning (nil, nil)
	IssueRefreshToken(ctx context.Context, access *AccessToken) (*RefreshToken, error)
	Persist(ctx context.Context, token *AccessToken) error
	PersistRefreshToken(ctx context.Context, token *RefreshToken) error
	RevokeAccessToken(ctx context.Context, token string) error
	// RevokeRefreshToken must be an atomic check-and-set: a second call returns ErrAlreadyRevoked
	RevokeRefreshToken(ctx context.Context, token string) error
	IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error)
	GetByRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	// RevokeFamily revokes every access and refresh token in the lineage
	RevokeFamily(ctx context.Context, familyID string) error
}
