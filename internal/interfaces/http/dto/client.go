package dto

import (
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
)

// CreateClientRequest registers an OAuth2 client. An empty ID is assigned by the server
// and an empty secret registers a public client.
type CreateClientRequest struct {
	ID           string   `json:"id" validate:"omitempty,max=255"`
	Name         string   `json:"name" validate:"required,max=255"`
	Secret       string   `json:"secret" validate:"omitempty,min=8,max=255"`
	RedirectURIs []string `json:"redirect_uris" validate:"dive,url"`
	Grants       []string `json:"grants" validate:"dive,oneof=authorization_code client_credentials implicit password refresh_token"`
	Scopes       []string `json:"scopes" validate:"dive,required"`
}

// ToDomain converts the request into a client
func (r CreateClientRequest) ToDomain(now time.Time) *domain.Client {
	grants := make([]domain.GrantIdentifier, 0, len(r.Grants))
	for _, g := range r.Grants {
		grants = append(grants, domain.GrantIdentifier(g))
	}
	return &domain.Client{
		ID:           r.ID,
		Name:         r.Name,
		Secret:       r.Secret,
		RedirectURIs: r.RedirectURIs,
		Grants:       grants,
		Scopes:       r.Scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ClientResponse is the public view of a client; the secret is never returned
type ClientResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Confidential bool      `json:"confidential"`
	RedirectURIs []string  `json:"redirect_uris"`
	Grants       []string  `json:"grants"`
	Scopes       []string  `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewClientResponse builds the response view of client
func NewClientResponse(client *domain.Client) ClientResponse {
	grants := make([]string, 0, len(client.Grants))
	for _, g := range client.Grants {
		grants = append(grants, string(g))
	}
	redirects := client.RedirectURIs
	if redirects == nil {
		redirects = []string{}
	}
	scopes := client.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return ClientResponse{
		ID:           client.ID,
		Name:         client.Name,
		Confidential: client.IsConfidential(),
		RedirectURIs: redirects,
		Grants:       grants,
		Scopes:       scopes,
		CreatedAt:    client.CreatedAt,
		UpdatedAt:    client.UpdatedAt,
	}
}
