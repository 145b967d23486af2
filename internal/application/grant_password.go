package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"go.uber.org/zap"
)

// PasswordGrant implements the resource owner password credentials grant (RFC 6749 §4.3)
type PasswordGrant struct {
	*grantToolkit
}

// RespondToAccessTokenRequest checks client, resource owner and scopes in that order, then issues a token pair
func (g *PasswordGrant) RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response, accessTokenTTL domain.DateInterval) (*domain.Response, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	user, err := g.validateUser(ctx, req, client)
	if err != nil {
		return nil, err
	}

	scopes, err := g.validateScopes(ctx, req.BodyValue("scope"), "")
	if err != nil {
		return nil, err
	}
	scopes, err = g.finalizeScopes(ctx, scopes, client, user.ID)
	if err != nil {
		return nil, err
	}

	access, err := g.issueAccessToken(ctx, accessTokenTTL, client, user, scopes, "")
	if err != nil {
		return nil, err
	}
	refresh, err := g.issueRefreshToken(ctx, access)
	if err != nil {
		return nil, err
	}

	return g.makeBearerTokenResponse(ctx, res, client, access, refresh, user, scopes)
}

func (g *PasswordGrant) validateUser(ctx context.Context, req *domain.Request, client *domain.Client) (*domain.User, error) {
	username := req.BodyParam("username")
	if username == "" {
		return nil, apperrors.NewInvalidRequest("username")
	}
	password := req.BodyParam("password")
	if password == "" {
		return nil, apperrors.NewInvalidRequest("password")
	}

	user, err := g.repos.Users.GetUserByCredentials(ctx, username, password, g.identifier, client)
	if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrNotFound) || (err == nil && user == nil) {
		g.logger.Warn("Resource owner authentication failed", zap.String("client_id", client.ID))
		return nil, apperrors.NewInvalidGrant("invalid resource owner credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by credentials: %w", err)
	}
	return user, nil
}
