package application

import (
	"context"

	"github.com/manorfm/oauth2server/internal/domain"
)

// ClientCredentialsGrant implements RFC 6749 §4.4. Only confidential clients qualify and no refresh token is issued.
type ClientCredentialsGrant struct {
	*grantToolkit
}

// RespondToAccessTokenRequest issues an access token to an authenticated confidential client
func (g *ClientCredentialsGrant) RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response, accessTokenTTL domain.DateInterval) (*domain.Response, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	scopes, err := g.validateScopes(ctx, req.BodyValue("scope"), "")
	if err != nil {
		return nil, err
	}
	scopes, err = g.finalizeScopes(ctx, scopes, client, "")
	if err != nil {
		return nil, err
	}

	access, err := g.issueAccessToken(ctx, accessTokenTTL, client, nil, scopes, "")
	if err != nil {
		return nil, err
	}

	return g.makeBearerTokenResponse(ctx, res, client, access, nil, nil, scopes)
}
