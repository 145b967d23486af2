package domain

import (
	"time"
)

// Client represents a registered OAuth2 client.
// A client without a secret is public; the engine never mutates it.
type Client struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Secret       string            `json:"-"`
	RedirectURIs []string          `json:"redirect_uris"`
	Grants       []GrantIdentifier `json:"grants"`
	Scopes       []string          `json:"scopes,omitempty"` // allowed scope names, empty allows all
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsConfidential reports whether the client was registered with a secret
func (c *Client) IsConfidential() bool {
	return c.Secret != ""
}

// HasRedirectURI reports whether uri is one of the registered redirect URIs
func (c *Client) HasRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsGrant reports whether the client may use the grant.
// An empty grant list allows every grant.
func (c *Client) AllowsGrant(grant GrantIdentifier) bool {
	if len(c.Grants) == 0 {
		return true
	}
	for _, g := range c.Grants {
		if g == grant {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the client may be granted the scope.
// An empty scope list allows every scope except the reserved ones.
func (c *Client) AllowsScope(name string) bool {
	for _, s := range c.Scopes {
		if s == name {
			return true
		}
	}
	return len(c.Scopes) == 0 && !IsReservedScope(name)
}
