package domain

import "time"

// PKCE code challenge methods (RFC 7636)
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

// AuthCode represents an issued OAuth2 authorization code.
// It is single use: once revoked it must never be redeemable again.
type AuthCode struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id,omitempty"`
	Scopes              []*Scope  `json:"scopes"`
	RedirectURI         string    `json:"redirect_uri,omitempty"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	FamilyID            string    `json:"family_id"`
	ExpiresAt           time.Time `json:"expires_at"`
	Revoked             bool      `json:"revoked"`
	CreatedAt           time.Time `json:"created_at"`
}

// IsExpired reports whether the code expired at or before now
func (c *AuthCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
