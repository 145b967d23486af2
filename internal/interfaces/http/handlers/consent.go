package handlers

import (
	"errors"
	"net/http"

	"github.com/manorfm/oauth2server/internal/domain"
)

// ErrLoginRequired means the resource owner has not authenticated yet
var ErrLoginRequired = errors.New("resource owner login required")

// ConsentFunc obtains the resource owner's decision for a validated authorization request
type ConsentFunc func(r *http.Request, authReq *domain.AuthorizationRequest) (domain.AuthorizationDecision, error)

// BasicAuthConsent authenticates the resource owner with HTTP Basic credentials and approves on success.
// A consent=deny query parameter denies without authenticating.
func BasicAuthConsent(users domain.UserRepository) ConsentFunc {
	return func(r *http.Request, authReq *domain.AuthorizationRequest) (domain.AuthorizationDecision, error) {
		if r.URL.Query().Get("consent") == "deny" {
			return domain.Denied{}, nil
		}

		username, password, ok := r.BasicAuth()
		if !ok || username == "" {
			return nil, ErrLoginRequired
		}

		user, err := users.GetUserByCredentials(r.Context(), username, password, authReq.GrantTypeID, authReq.Client)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrNotFound) {
				return nil, ErrLoginRequired
			}
			return nil, err
		}
		return domain.Approved{UserID: user.ID}, nil
	}
}
