package application

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"go.uber.org/zap"
)

// BearerTokenResponse is the body of a successful token response
type BearerTokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

var registeredClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {}, "cid": {}, "scope": {},
}

// expiresIn is ceil((expiresAt-now) in ms / 1000), never negative
func expiresIn(expiresAt, now time.Time) int64 {
	diff := expiresAt.UnixMilli() - now.UnixMilli()
	if diff <= 0 {
		return 0
	}
	return (diff + 999) / 1000
}

// ceilUnix is ceil(t in ms / 1000)
func ceilUnix(t time.Time) int64 {
	ms := t.UnixMilli()
	if ms <= 0 {
		return ms / 1000
	}
	return (ms + 999) / 1000
}

func joinScopes(scopes []*domain.Scope) string {
	return strings.Join(domain.ScopeNames(scopes), scopeDelimiter)
}

// signAccessToken builds the JWT form of an access token
func (t *grantToolkit) signAccessToken(ctx context.Context, client *domain.Client, access *domain.AccessToken, user *domain.User, scopes []*domain.Scope) (string, error) {
	now := t.now()
	claims := domain.Claims{
		"exp":   ceilUnix(access.ExpiresAt),
		"nbf":   ceilUnix(now),
		"iat":   ceilUnix(now),
		"jti":   access.Token,
		"cid":   client.Name,
		"scope": joinScopes(scopes),
	}
	if userID := domain.UserID(user); userID != "" {
		claims["sub"] = userID
	}

	if provider, ok := t.repos.Users.(domain.ExtraAccessTokenFieldsProvider); ok && user != nil {
		extra, err := provider.ExtraAccessTokenFields(ctx, user)
		if err != nil {
			return "", fmt.Errorf("extra access token fields: %w", err)
		}
		for k, v := range extra {
			if _, reserved := registeredClaims[k]; reserved {
				continue
			}
			claims[k] = v
		}
	}

	token, err := t.jwt.Sign(ctx, claims)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// makeBearerTokenResponse signs the token pair and writes the JSON body onto res
func (t *grantToolkit) makeBearerTokenResponse(ctx context.Context, res *domain.Response, client *domain.Client, access *domain.AccessToken, refresh *domain.RefreshToken, user *domain.User, scopes []*domain.Scope) (*domain.Response, error) {
	if res == nil {
		res = domain.NewResponse()
	}
	scope := joinScopes(scopes)

	accessJWT, err := t.signAccessToken(ctx, client, access, user, scopes)
	if err != nil {
		return nil, err
	}

	body := BearerTokenResponse{
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   expiresIn(access.ExpiresAt, t.now()),
		AccessToken: accessJWT,
		Scope:       scope,
	}

	if refresh != nil {
		refreshJWT, err := t.jwt.Sign(ctx, domain.Claims{
			"client_id":        client.ID,
			"access_token_id":  access.Token,
			"refresh_token_id": refresh.Token,
			"scope":            scope,
			"user_id":          domain.UserID(user),
			"expire_time":      ceilUnix(access.ExpiresAt),
		})
		if err != nil {
			return nil, fmt.Errorf("sign refresh token: %w", err)
		}
		body.RefreshToken = refreshJWT
	}

	res.Status = http.StatusOK
	res.Body = body
	res.SetHeader("content-type", "application/json; charset=UTF-8")
	res.SetHeader("cache-control", "no-store")
	res.SetHeader("pragma", "no-cache")

	t.metrics.RecordTokenIssued(ctx, string(t.identifier), refresh != nil)
	t.logger.Debug("Issued bearer token",
		zap.String("client_id", client.ID),
		zap.String("family_id", access.FamilyID),
		zap.Bool("refresh_token", refresh != nil))

	return res, nil
}
