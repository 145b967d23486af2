package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"go.uber.org/zap"
)

// RefreshTokenGrant implements refresh token rotation (RFC 6749 §6).
// A replayed refresh token revokes its whole family.
type RefreshTokenGrant struct {
	*grantToolkit
}

type refreshPayload struct {
	ClientID       string
	AccessTokenID  string
	RefreshTokenID string
	Scope          string
	UserID         string
}

func parseRefreshPayload(c domain.Claims) (refreshPayload, error) {
	var p refreshPayload
	var err error
	if p.RefreshTokenID, err = c.RequireString("refresh_token_id"); err != nil {
		return p, err
	}
	if p.ClientID, err = c.RequireString("client_id"); err != nil {
		return p, err
	}
	p.AccessTokenID, _ = c.String("access_token_id")
	p.Scope, _ = c.String("scope")
	p.UserID, _ = c.String("user_id")
	return p, nil
}

// RespondToAccessTokenRequest rotates a refresh token into a new token pair
func (g *RefreshTokenGrant) RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response, accessTokenTTL domain.DateInterval) (*domain.Response, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	encrypted := req.BodyParam("refresh_token")
	if encrypted == "" {
		return nil, apperrors.NewInvalidRequest("refresh_token")
	}
	claims, err := g.jwt.Verify(ctx, encrypted)
	if err != nil {
		return nil, apperrors.NewInvalidGrant("cannot verify the refresh token").WithCause(err)
	}
	payload, err := parseRefreshPayload(claims)
	if err != nil {
		return nil, apperrors.NewInvalidGrant("malformed refresh token").WithCause(err)
	}
	if payload.ClientID != client.ID {
		g.logger.Warn("Refresh token presented by another client", zap.String("client_id", client.ID))
		return nil, apperrors.NewInvalidGrant("refresh token was not issued to this client")
	}

	old, err := g.repos.Tokens.GetByRefreshToken(ctx, payload.RefreshTokenID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && old == nil) {
		return nil, apperrors.NewInvalidGrant("refresh token not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	revoked, err := g.repos.Tokens.IsRefreshTokenRevoked(ctx, payload.RefreshTokenID)
	if err != nil {
		return nil, fmt.Errorf("check refresh token revocation: %w", err)
	}
	if revoked || old.Revoked {
		g.metrics.RecordTokenReuse(ctx)
		g.revokeFamily(ctx, old.FamilyID)
		return nil, apperrors.NewInvalidGrant("refresh token has been revoked")
	}
	if old.IsExpired(g.now()) {
		return nil, apperrors.NewInvalidGrant("refresh token has expired")
	}
	if old.ClientID != client.ID {
		return nil, apperrors.NewInvalidGrant("refresh token was not issued to this client")
	}

	scopes, err := g.narrowScopes(ctx, req, old)
	if err != nil {
		return nil, err
	}

	userID := old.UserID
	if userID == "" {
		userID = payload.UserID
	}
	user, err := g.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := g.repos.Tokens.RevokeRefreshToken(ctx, old.Token); err != nil {
		if errors.Is(err, domain.ErrAlreadyRevoked) {
			g.metrics.RecordTokenReuse(ctx)
			g.revokeFamily(ctx, old.FamilyID)
			return nil, apperrors.NewInvalidGrant("refresh token has been revoked")
		}
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if old.AccessToken != "" {
		if err := g.repos.Tokens.RevokeAccessToken(ctx, old.AccessToken); err != nil &&
			!errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAlreadyRevoked) {
			return nil, fmt.Errorf("revoke access token: %w", err)
		}
	}

	scopes, err = g.finalizeScopes(ctx, scopes, client, userID)
	if err != nil {
		return nil, err
	}

	access, err := g.issueAccessToken(ctx, accessTokenTTL, client, user, scopes, old.FamilyID)
	if err != nil {
		return nil, err
	}
	refresh, err := g.issueRefreshToken(ctx, access)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Rotated refresh token",
		zap.String("client_id", client.ID),
		zap.String("family_id", old.FamilyID))

	return g.makeBearerTokenResponse(ctx, res, client, access, refresh, user, scopes)
}

// narrowScopes returns the requested scopes, which must be a subset of the original grant.
// Without a scope parameter the original scopes are kept.
func (g *RefreshTokenGrant) narrowScopes(ctx context.Context, req *domain.Request, old *domain.RefreshToken) ([]*domain.Scope, error) {
	requested := req.BodyValue("scope")
	if names, _ := scopeNames(requested); len(names) == 0 {
		return old.Scopes, nil
	}

	scopes, err := g.validateScopes(ctx, requested, "")
	if err != nil {
		return nil, err
	}
	for _, s := range scopes {
		if !domain.ContainsScope(old.Scopes, s.Name) {
			return nil, apperrors.NewInvalidScope(s.Name, "")
		}
	}
	return scopes, nil
}
