package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"go.uber.org/zap"
)

// AuthCodeGrant implements the authorization_code grant with PKCE (RFC 6749 §4.1, RFC 7636)
type AuthCodeGrant struct {
	*grantToolkit
}

type authCodePayload struct {
	ClientID            string
	RedirectURI         string
	AuthCodeID          string
	Scopes              []string
	UserID              string
	ExpireTime          int64
	CodeChallenge       string
	CodeChallengeMethod string
}

func (p authCodePayload) claims() domain.Claims {
	return domain.Claims{
		"client_id":             p.ClientID,
		"redirect_uri":          p.RedirectURI,
		"auth_code_id":          p.AuthCodeID,
		"scopes":                p.Scopes,
		"user_id":               p.UserID,
		"expire_time":           p.ExpireTime,
		"code_challenge":        p.CodeChallenge,
		"code_challenge_method": p.CodeChallengeMethod,
	}
}

func parseAuthCodePayload(c domain.Claims) (authCodePayload, error) {
	var p authCodePayload
	var err error
	if p.AuthCodeID, err = c.RequireString("auth_code_id"); err != nil {
		return p, err
	}
	if p.ClientID, err = c.RequireString("client_id"); err != nil {
		return p, err
	}
	expire, ok := c.Int64("expire_time")
	if !ok {
		return p, fmt.Errorf("claim %q missing", "expire_time")
	}
	p.ExpireTime = expire
	p.RedirectURI, _ = c.String("redirect_uri")
	p.UserID, _ = c.String("user_id")
	p.CodeChallenge, _ = c.String("code_challenge")
	p.CodeChallengeMethod, _ = c.String("code_challenge_method")
	p.Scopes, _ = c.StringSlice("scopes")
	return p, nil
}

// CanRespondToAuthorizationRequest matches response_type=code
func (g *AuthCodeGrant) CanRespondToAuthorizationRequest(req *domain.Request) bool {
	return req.QueryParam("response_type") == "code"
}

// ValidateAuthorizationRequest checks client, redirect URI, PKCE and scopes in that order
func (g *AuthCodeGrant) ValidateAuthorizationRequest(ctx context.Context, req *domain.Request) (*domain.AuthorizationRequest, error) {
	clientID := req.QueryParam("client_id")
	if clientID == "" {
		return nil, apperrors.NewInvalidRequest("client_id")
	}
	g.logger.Debug("Validating authorization request", zap.String("client_id", clientID))

	client, err := g.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	redirectURI, err := g.resolveRedirectURI(req.QueryParam("redirect_uri"), client)
	if err != nil {
		return nil, err
	}
	state := req.QueryParam("state")

	codeChallenge := req.QueryParam("code_challenge")
	codeChallengeMethod := req.QueryParam("code_challenge_method")
	if codeChallenge == "" {
		if g.options.requiresPKCE {
			return nil, apperrors.NewInvalidRequest("code_challenge", "The authorization server requires public clients to use PKCE RFC-7636").
				WithState(state)
		}
		codeChallengeMethod = ""
	} else {
		if codeChallengeMethod == "" {
			codeChallengeMethod = domain.CodeChallengeMethodPlain
		}
		if _, ok := codeChallengeVerifiers[codeChallengeMethod]; !ok {
			return nil, apperrors.NewInvalidRequest("code_challenge_method", "Code challenge method must be one of `plain` or `S256`")
		}
		if !isValidPKCEString(codeChallenge) {
			return nil, apperrors.NewInvalidRequest("code_challenge", "Code challenge must match ^[A-Za-z0-9-._~]{43,128}$ (RFC 7636)")
		}
	}

	scopes, err := g.validateScopes(ctx, req.QueryParam("scope"), redirectURI)
	if err != nil {
		return nil, withErrorState(err, state)
	}

	return &domain.AuthorizationRequest{
		GrantTypeID:         g.identifier,
		Client:              client,
		RedirectURI:         redirectURI,
		State:               state,
		Scopes:              scopes,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}, nil
}

// CompleteAuthorizationRequest issues a code on approval and redirects back to the client
func (g *AuthCodeGrant) CompleteAuthorizationRequest(ctx context.Context, authReq *domain.AuthorizationRequest, decision domain.AuthorizationDecision, _ domain.DateInterval) (*domain.Response, error) {
	userID, approved, err := approvedUser(decision)
	if err != nil {
		return nil, err
	}

	if !approved {
		g.logger.Debug("Authorization denied", zap.String("client_id", authReq.Client.ID))
		params := url.Values{}
		params.Set("error", apperrors.CodeAccessDenied)
		params.Set("error_description", apperrors.NewAccessDenied(authReq.RedirectURI, authReq.State).Message)
		if authReq.State != "" {
			params.Set("state", authReq.State)
		}
		return domain.NewRedirectResponse(withQuery(authReq.RedirectURI, params)), nil
	}

	scopes, err := g.finalizeScopes(ctx, authReq.Scopes, authReq.Client, userID)
	if err != nil {
		return nil, err
	}

	authCode, err := g.issueAuthCode(ctx, g.options.authCodeTTL, authReq.Client, userID, authReq.RedirectURI,
		authReq.CodeChallenge, authReq.CodeChallengeMethod, scopes)
	if err != nil {
		return nil, err
	}

	payload := authCodePayload{
		ClientID:            authReq.Client.ID,
		RedirectURI:         authReq.RedirectURI,
		AuthCodeID:          authCode.Code,
		Scopes:              domain.ScopeNames(scopes),
		UserID:              userID,
		ExpireTime:          ceilUnix(authCode.ExpiresAt),
		CodeChallenge:       authReq.CodeChallenge,
		CodeChallengeMethod: authReq.CodeChallengeMethod,
	}
	code, err := g.jwt.Sign(ctx, payload.claims())
	if err != nil {
		return nil, fmt.Errorf("sign auth code: %w", err)
	}

	params := url.Values{}
	params.Set("code", code)
	if authReq.State != "" {
		params.Set("state", authReq.State)
	}

	g.logger.Debug("Issued authorization code",
		zap.String("client_id", authReq.Client.ID),
		zap.String("family_id", authCode.FamilyID))

	return domain.NewRedirectResponse(withQuery(authReq.RedirectURI, params)), nil
}

// RespondToAccessTokenRequest exchanges a code (and PKCE verifier) for a token pair
func (g *AuthCodeGrant) RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response, accessTokenTTL domain.DateInterval) (*domain.Response, error) {
	client, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	encrypted := req.BodyParam("code")
	if encrypted == "" {
		return nil, apperrors.NewInvalidRequest("code")
	}

	claims, err := g.jwt.Verify(ctx, encrypted)
	if err != nil {
		return nil, apperrors.NewInvalidGrant("cannot verify the authorization code").WithCause(err)
	}
	payload, err := parseAuthCodePayload(claims)
	if err != nil {
		return nil, apperrors.NewInvalidGrant("malformed authorization code").WithCause(err)
	}

	authCode, err := g.repos.AuthCodes.GetByIdentifier(ctx, payload.AuthCodeID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && authCode == nil) {
		return nil, apperrors.NewInvalidGrant("authorization code not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get auth code: %w", err)
	}

	revoked, err := g.repos.AuthCodes.IsRevoked(ctx, payload.AuthCodeID)
	if err != nil {
		return nil, fmt.Errorf("check auth code revocation: %w", err)
	}
	if revoked || authCode.Revoked {
		g.metrics.RecordCodeReuse(ctx)
		g.revokeFamily(ctx, authCode.FamilyID)
		return nil, apperrors.NewInvalidGrant("authorization code has been revoked")
	}

	now := g.now()
	if now.Unix() > payload.ExpireTime || authCode.IsExpired(now) {
		return nil, apperrors.NewInvalidGrant("authorization code has expired")
	}

	if payload.ClientID != client.ID || authCode.ClientID != client.ID {
		g.logger.Warn("Authorization code presented by another client", zap.String("client_id", client.ID))
		return nil, apperrors.NewInvalidGrant("authorization code was not issued to this client")
	}

	redirectURI := req.BodyParam("redirect_uri")
	if payload.RedirectURI != "" {
		if redirectURI == "" {
			return nil, apperrors.NewInvalidRequest("redirect_uri")
		}
		if redirectURI != payload.RedirectURI {
			return nil, apperrors.NewInvalidGrant("redirect_uri does not match the authorization request")
		}
	}

	if err := g.verifyCodeChallenge(ctx, req, payload); err != nil {
		return nil, err
	}

	// token endpoint errors are never redirected
	scopes, err := g.validateScopes(ctx, payload.Scopes, "")
	if err != nil {
		return nil, err
	}

	user, err := g.lookupUser(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}

	// single use: the atomic revoke is the last check before issuance
	if err := g.repos.AuthCodes.Revoke(ctx, payload.AuthCodeID); err != nil {
		if errors.Is(err, domain.ErrAlreadyRevoked) {
			g.metrics.RecordCodeReuse(ctx)
			g.revokeFamily(ctx, authCode.FamilyID)
			return nil, apperrors.NewInvalidGrant("authorization code has been revoked")
		}
		return nil, fmt.Errorf("revoke auth code: %w", err)
	}

	scopes, err = g.finalizeScopes(ctx, scopes, client, payload.UserID)
	if err != nil {
		return nil, err
	}

	access, err := g.issueAccessToken(ctx, accessTokenTTL, client, user, scopes, authCode.FamilyID)
	if err != nil {
		return nil, err
	}
	refresh, err := g.issueRefreshToken(ctx, access)
	if err != nil {
		return nil, err
	}

	return g.makeBearerTokenResponse(ctx, res, client, access, refresh, user, scopes)
}

func (g *AuthCodeGrant) verifyCodeChallenge(ctx context.Context, req *domain.Request, payload authCodePayload) error {
	if payload.CodeChallenge == "" {
		if g.options.requiresPKCE {
			return apperrors.NewInvalidGrant("authorization code was issued without a code challenge")
		}
		return nil
	}

	verifier := req.BodyParam("code_verifier")
	if verifier == "" {
		return apperrors.NewInvalidRequest("code_verifier", "Must include a code_verifier")
	}
	if !isValidPKCEString(verifier) {
		return apperrors.NewInvalidRequest("code_verifier", "Code verifier must match ^[A-Za-z0-9-._~]{43,128}$ (RFC 7636)")
	}

	method := payload.CodeChallengeMethod
	if method == "" {
		method = domain.CodeChallengeMethodPlain
	}
	v, ok := codeChallengeVerifiers[method]
	if !ok {
		return apperrors.NewInvalidRequest("code_challenge_method")
	}
	if !v.Verify(verifier, payload.CodeChallenge) {
		g.metrics.RecordPKCEFailure(ctx, method)
		g.logger.Warn("PKCE verification failed", zap.String("method", method))
		return apperrors.NewInvalidGrant("failed to verify code challenge")
	}
	return nil
}

// withErrorState attaches state to protocol errors delivered by redirect
func withErrorState(err error, state string) error {
	if oauthErr, ok := apperrors.AsOAuthError(err); ok && state != "" {
		return oauthErr.WithState(state)
	}
	return err
}
