package application

import (
	"context"
	"net/url"
	"strconv"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"go.uber.org/zap"
)

// ImplicitGrant implements the implicit grant (RFC 6749 §4.2). Tokens travel in the redirect fragment.
type ImplicitGrant struct {
	*grantToolkit
}

// CanRespondToAuthorizationRequest matches response_type=token
func (g *ImplicitGrant) CanRespondToAuthorizationRequest(req *domain.Request) bool {
	return req.QueryParam("response_type") == "token"
}

// CanRespondToAccessTokenRequest is always false: the implicit grant has no token endpoint step
func (g *ImplicitGrant) CanRespondToAccessTokenRequest(*domain.Request) bool {
	return false
}

// ValidateAuthorizationRequest checks client, redirect URI and scopes in that order
func (g *ImplicitGrant) ValidateAuthorizationRequest(ctx context.Context, req *domain.Request) (*domain.AuthorizationRequest, error) {
	clientID := req.QueryParam("client_id")
	if clientID == "" {
		return nil, apperrors.NewInvalidRequest("client_id")
	}
	g.logger.Debug("Validating implicit authorization request", zap.String("client_id", clientID))

	client, err := g.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	redirectURI, err := g.resolveRedirectURI(req.QueryParam("redirect_uri"), client)
	if err != nil {
		return nil, err
	}
	state := req.QueryParam("state")

	scopes, err := g.validateScopes(ctx, req.QueryParam("scope"), redirectURI)
	if err != nil {
		if oauthErr, ok := apperrors.AsOAuthError(err); ok {
			oauthErr.InFragment()
		}
		return nil, withErrorState(err, state)
	}

	return &domain.AuthorizationRequest{
		GrantTypeID: g.identifier,
		Client:      client,
		RedirectURI: redirectURI,
		State:       state,
		Scopes:      scopes,
	}, nil
}

// CompleteAuthorizationRequest issues an access token on approval and redirects with it in the fragment
func (g *ImplicitGrant) CompleteAuthorizationRequest(ctx context.Context, authReq *domain.AuthorizationRequest, decision domain.AuthorizationDecision, accessTokenTTL domain.DateInterval) (*domain.Response, error) {
	userID, approved, err := approvedUser(decision)
	if err != nil {
		return nil, err
	}

	if !approved {
		params := url.Values{}
		params.Set("error", apperrors.CodeAccessDenied)
		params.Set("error_description", apperrors.NewAccessDenied(authReq.RedirectURI, authReq.State).Message)
		if authReq.State != "" {
			params.Set("state", authReq.State)
		}
		return domain.NewRedirectResponse(withFragment(authReq.RedirectURI, params)), nil
	}

	user, err := g.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	scopes, err := g.finalizeScopes(ctx, authReq.Scopes, authReq.Client, userID)
	if err != nil {
		return nil, err
	}

	access, err := g.issueAccessToken(ctx, accessTokenTTL, authReq.Client, user, scopes, "")
	if err != nil {
		return nil, err
	}

	accessJWT, err := g.signAccessToken(ctx, authReq.Client, access, user, scopes)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", accessJWT)
	params.Set("token_type", domain.TokenTypeBearer)
	params.Set("expires_in", strconv.FormatInt(expiresIn(access.ExpiresAt, g.now()), 10))
	params.Set("scope", joinScopes(scopes))
	if authReq.State != "" {
		params.Set("state", authReq.State)
	}

	g.metrics.RecordTokenIssued(ctx, string(g.identifier), false)
	g.logger.Debug("Issued implicit access token", zap.String("client_id", authReq.Client.ID))

	return domain.NewRedirectResponse(withFragment(authReq.RedirectURI, params)), nil
}
