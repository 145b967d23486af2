package application

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"github.com/manorfm/oauth2server/internal/infrastructure/instrumentation"
	"go.uber.org/zap"
)

const scopeDelimiter = " "

// Repositories groups the persistence capabilities used by the grants
type Repositories struct {
	Clients   domain.ClientRepository
	Scopes    domain.ScopeRepository
	Users     domain.UserRepository
	AuthCodes domain.AuthCodeRepository
	Tokens    domain.TokenRepository
}

// grantToolkit holds the validation and issuance routines shared by every grant.
// Each grant embeds one and overrides the phases it supports.
type grantToolkit struct {
	identifier domain.GrantIdentifier
	repos      Repositories
	jwt        domain.JWT
	options    *serverOptions
	metrics    *instrumentation.Metrics
	logger     *zap.Logger
}

func newGrantToolkit(id domain.GrantIdentifier, repos Repositories, jwt domain.JWT, opts *serverOptions, metrics *instrumentation.Metrics, logger *zap.Logger) *grantToolkit {
	return &grantToolkit{
		identifier: id,
		repos:      repos,
		jwt:        jwt,
		options:    opts,
		metrics:    metrics,
		logger:     logger.With(zap.String("grant_type", string(id))),
	}
}

func (t *grantToolkit) now() time.Time {
	return t.options.now()
}

// clientCredentials reads client_id/client_secret from the body, falling back to HTTP Basic auth
func (t *grantToolkit) clientCredentials(req *domain.Request) (string, string, error) {
	basicUser, basicPass := basicAuthCredentials(req)

	clientID := req.BodyParam("client_id")
	if clientID == "" {
		clientID = basicUser
	}
	if clientID == "" {
		return "", "", apperrors.NewInvalidRequest("client_id")
	}

	clientSecret := req.BodyParam("client_secret")
	if clientSecret == "" {
		clientSecret = basicPass
	}
	return clientID, clientSecret, nil
}

func basicAuthCredentials(req *domain.Request) (string, string) {
	header := req.Header("authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return "", ""
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", ""
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", ""
	}
	return user, pass
}

// validateClient authenticates the client of a token request
func (t *grantToolkit) validateClient(ctx context.Context, req *domain.Request) (*domain.Client, error) {
	clientID, clientSecret, err := t.clientCredentials(req)
	if err != nil {
		return nil, err
	}

	client, err := t.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	valid, err := t.repos.Clients.IsClientValid(ctx, t.identifier, client, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("validate client: %w", err)
	}
	if !valid {
		t.logger.Warn("Client validation failed", zap.String("client_id", clientID))
		return nil, apperrors.NewInvalidClient()
	}

	if t.identifier == domain.GrantClientCredentials {
		if client.Secret == "" || clientSecret == "" ||
			subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
			t.logger.Warn("Confidential client secret mismatch", zap.String("client_id", clientID))
			return nil, apperrors.NewInvalidClient()
		}
	}

	return client, nil
}

// lookupClient loads a client and checks it may use this grant
func (t *grantToolkit) lookupClient(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := t.repos.Clients.GetByIdentifier(ctx, clientID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && client == nil) {
		t.logger.Warn("Unknown client", zap.String("client_id", clientID))
		return nil, apperrors.NewInvalidClient()
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if !client.AllowsGrant(t.identifier) {
		t.logger.Warn("Grant not allowed for client", zap.String("client_id", clientID))
		return nil, apperrors.NewInvalidClient()
	}
	return client, nil
}

// validateRedirectURI requires a non-empty, registered redirect URI
func (t *grantToolkit) validateRedirectURI(redirectURI string, client *domain.Client) error {
	if !client.HasRedirectURI(redirectURI) {
		t.logger.Warn("Invalid redirect URI",
			zap.String("client_id", client.ID),
			zap.String("redirect_uri", redirectURI))
		return apperrors.NewInvalidClient()
	}
	return nil
}

// resolveRedirectURI falls back to the only registered URI when the request omits it
func (t *grantToolkit) resolveRedirectURI(redirectURI string, client *domain.Client) (string, error) {
	if redirectURI == "" && len(client.RedirectURIs) == 1 {
		redirectURI = client.RedirectURIs[0]
	}
	if err := t.validateRedirectURI(redirectURI, client); err != nil {
		return "", err
	}
	return redirectURI, nil
}

// validateScopes resolves requested scope names. raw is a space separated string or a list.
func (t *grantToolkit) validateScopes(ctx context.Context, raw any, redirectURI string) ([]*domain.Scope, error) {
	names, err := scopeNames(raw)
	if err != nil {
		return nil, apperrors.NewInvalidRequest("scope", err.Error())
	}
	if len(names) == 0 {
		return []*domain.Scope{}, nil
	}

	scopes, err := t.repos.Scopes.GetAllByIdentifiers(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("get scopes: %w", err)
	}

	known := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		known[s.Name] = struct{}{}
	}
	var invalid []string
	for _, name := range names {
		if _, ok := known[name]; !ok {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		t.logger.Warn("Invalid scopes requested", zap.Strings("scopes", invalid))
		return nil, apperrors.NewInvalidScope(strings.Join(invalid, ", "), redirectURI)
	}
	return scopes, nil
}

func scopeNames(raw any) ([]string, error) {
	var names []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		names = strings.Fields(v)
	case []string:
		names = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("scope entries must be strings")
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("scope must be a string or a list of strings")
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// finalizeScopes runs the repository hook right before issuance
func (t *grantToolkit) finalizeScopes(ctx context.Context, scopes []*domain.Scope, client *domain.Client, userID string) ([]*domain.Scope, error) {
	final, err := t.repos.Scopes.Finalize(ctx, scopes, t.identifier, client, userID)
	if err != nil {
		return nil, fmt.Errorf("finalize scopes: %w", err)
	}
	return final, nil
}

// lookupUser resolves a user id. An empty id yields no user.
func (t *grantToolkit) lookupUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, nil
	}
	user, err := t.repos.Users.GetByIdentifier(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && user == nil) {
		return nil, apperrors.NewInvalidGrant("unknown resource owner")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// issueAccessToken mints, stamps and persists an access token. An empty familyID starts a new lineage.
func (t *grantToolkit) issueAccessToken(ctx context.Context, ttl domain.DateInterval, client *domain.Client, user *domain.User, scopes []*domain.Scope, familyID string) (*domain.AccessToken, error) {
	token, err := t.repos.Tokens.IssueToken(ctx, client, scopes, user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	now := t.now()
	token.ExpiresAt = ttl.EndFrom(now)
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	if familyID != "" {
		token.FamilyID = familyID
	} else if token.FamilyID == "" {
		token.FamilyID = domain.NewID()
	}

	if err := t.repos.Tokens.Persist(ctx, token); err != nil {
		return nil, fmt.Errorf("persist access token: %w", err)
	}
	return token, nil
}

// issueAuthCode mints and persists an authorization code
func (t *grantToolkit) issueAuthCode(ctx context.Context, ttl domain.DateInterval, client *domain.Client, userID, redirectURI, codeChallenge, codeChallengeMethod string, scopes []*domain.Scope) (*domain.AuthCode, error) {
	user, err := t.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	code, err := t.repos.AuthCodes.IssueAuthCode(ctx, client, user, scopes)
	if err != nil {
		return nil, fmt.Errorf("issue auth code: %w", err)
	}
	now := t.now()
	code.ExpiresAt = ttl.EndFrom(now)
	code.RedirectURI = redirectURI
	code.CodeChallenge = codeChallenge
	code.CodeChallengeMethod = codeChallengeMethod
	code.Scopes = scopes
	if code.CreatedAt.IsZero() {
		code.CreatedAt = now
	}
	if code.FamilyID == "" {
		code.FamilyID = domain.NewID()
	}

	if err := t.repos.AuthCodes.Persist(ctx, code); err != nil {
		return nil, fmt.Errorf("persist auth code: %w", err)
	}
	return code, nil
}

// issueRefreshToken returns nil when the repository declines to mint one
func (t *grantToolkit) issueRefreshToken(ctx context.Context, access *domain.AccessToken) (*domain.RefreshToken, error) {
	refresh, err := t.repos.Tokens.IssueRefreshToken(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if refresh == nil {
		return nil, nil
	}

	now := t.now()
	if refresh.ExpiresAt.IsZero() {
		refresh.ExpiresAt = t.options.refreshTokenTTL.EndFrom(now)
	}
	if refresh.CreatedAt.IsZero() {
		refresh.CreatedAt = now
	}
	if refresh.FamilyID == "" {
		refresh.FamilyID = access.FamilyID
	}
	if refresh.AccessToken == "" {
		refresh.AccessToken = access.Token
	}

	if err := t.repos.Tokens.PersistRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return refresh, nil
}

// revokeFamily is called on replay of a code or refresh token
func (t *grantToolkit) revokeFamily(ctx context.Context, familyID string) {
	if familyID == "" {
		return
	}
	t.logger.Warn("Replay detected, revoking token family", zap.String("family_id", familyID))
	if err := t.repos.Tokens.RevokeFamily(ctx, familyID); err != nil {
		t.logger.Error("Failed to revoke token family",
			zap.String("family_id", familyID),
			zap.Error(err))
	}
}

// withQuery appends params to the query string of uri
func withQuery(uri string, params url.Values) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri + "?" + params.Encode()
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// withFragment replaces the fragment of uri with params
func withFragment(uri string, params url.Values) string {
	base, _, _ := strings.Cut(uri, "#")
	return base + "#" + params.Encode()
}
