package handlers

import (
	"errors"
	"net/http"

	httperrors "github.com/manorfm/oauth2server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// OAuth2Handler serves the authorization and token endpoints
type OAuth2Handler struct {
	server  AuthorizationServer
	consent ConsentFunc
	logger  *zap.Logger
}

// NewOAuth2Handler creates a new OAuth2Handler
func NewOAuth2Handler(server AuthorizationServer, consent ConsentFunc, logger *zap.Logger) *OAuth2Handler {
	return &OAuth2Handler{
		server:  server,
		consent: consent,
		logger:  logger,
	}
}

// AuthorizeHandler validates the authorization request, collects consent and redirects back to the client
func (h *OAuth2Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	req, err := newDomainRequest(w, r)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err, h.logger)
		return
	}

	authReq, err := h.server.ValidateAuthorizationRequest(r.Context(), req)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err, h.logger)
		return
	}

	decision, err := h.consent(r, authReq)
	if err != nil {
		if errors.Is(err, ErrLoginRequired) {
			w.Header().Set("WWW-Authenticate", `Basic realm="authorize"`)
			httperrors.RespondWithError(w, httperrors.ErrCodeUnauthorized, "Resource owner authentication required", nil, http.StatusUnauthorized)
			return
		}
		httperrors.RespondWithOAuthError(w, err, h.logger)
		return
	}

	res, err := h.server.CompleteAuthorizationRequest(r.Context(), authReq, decision)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err, h.logger)
		return
	}

	h.logger.Debug("Authorization request completed", zap.String("client_id", authReq.Client.ID))
	writeResponse(w, res, h.logger)
}

// TokenHandler exchanges a grant for a bearer token
func (h *OAuth2Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	req, err := newDomainRequest(w, r)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err, h.logger)
		return
	}

	res, err := h.server.RespondToAccessTokenRequest(r.Context(), req, nil)
	if err != nil {
		httperrors.RespondWithOAuthError(w, err, h.logger)
		return
	}

	writeResponse(w, res, h.logger)
}
