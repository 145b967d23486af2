package domain

import "time"

// TokenTypeBearer is the only token type issued by the server
const TokenTypeBearer = "Bearer"

// AccessToken is a bearer token record. Holders only ever see its signed JWT form.
type AccessToken struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id,omitempty"`
	Scopes    []*Scope  `json:"scopes"`
	FamilyID  string    `json:"family_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken belongs to exactly one access token lineage (FamilyID)
type RefreshToken struct {
	Token       string    `json:"token"`
	AccessToken string    `json:"access_token"`
	ClientID    string    `json:"client_id"`
	UserID      string    `json:"user_id,omitempty"`
	Scopes      []*Scope  `json:"scopes"`
	FamilyID    string    `json:"family_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsExpired reports whether the token expired at or before now
func (t *AccessToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsExpired reports whether the refresh token expired at or before now
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
