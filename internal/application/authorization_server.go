package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"github.com/manorfm/oauth2server/internal/infrastructure/instrumentation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AuthorizationServer dispatches authorization and token requests to the enabled grants
type AuthorizationServer struct {
	options   serverOptions
	available map[domain.GrantIdentifier]Grant
	enabled   []Grant
	ttls      map[domain.GrantIdentifier]domain.DateInterval
	metrics   *instrumentation.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewAuthorizationServer builds a server with every grant available and none enabled
func NewAuthorizationServer(repos Repositories, jwt domain.JWT, logger *zap.Logger, opts ...Option) *AuthorizationServer {
	s := &AuthorizationServer{
		options: defaultOptions(),
		ttls:    make(map[domain.GrantIdentifier]domain.DateInterval),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	if s.options.instrumentation == nil {
		s.options.instrumentation = instrumentation.NewNop()
	}
	s.metrics = s.options.instrumentation.Metrics()
	s.tracer = s.options.instrumentation.Tracer("server")

	toolkit := func(id domain.GrantIdentifier) *grantToolkit {
		return newGrantToolkit(id, repos, jwt, &s.options, s.metrics, logger)
	}
	s.available = map[domain.GrantIdentifier]Grant{
		domain.GrantAuthorizationCode: &AuthCodeGrant{toolkit(domain.GrantAuthorizationCode)},
		domain.GrantClientCredentials: &ClientCredentialsGrant{toolkit(domain.GrantClientCredentials)},
		domain.GrantImplicit:          &ImplicitGrant{toolkit(domain.GrantImplicit)},
		domain.GrantPassword:          &PasswordGrant{toolkit(domain.GrantPassword)},
		domain.GrantRefreshToken:      &RefreshTokenGrant{toolkit(domain.GrantRefreshToken)},
	}
	return s
}

// EnableGrantType activates a grant with its access token TTL. A zero TTL means one hour.
// Re-enabling keeps the original registration position and replaces the TTL.
func (s *AuthorizationServer) EnableGrantType(id domain.GrantIdentifier, accessTokenTTL domain.DateInterval) error {
	grant, ok := s.available[id]
	if !ok {
		return fmt.Errorf("unknown grant type %q", id)
	}
	if accessTokenTTL.IsZero() {
		accessTokenTTL = domain.NewDateInterval(domain.DefaultAccessTokenTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, already := s.ttls[id]; !already {
		s.enabled = append(s.enabled, grant)
	}
	s.ttls[id] = accessTokenTTL

	s.logger.Info("Grant type enabled",
		zap.String("grant_type", string(id)),
		zap.Duration("access_token_ttl", accessTokenTTL.Duration))
	return nil
}

// GetGrant returns one of the five known grants whether enabled or not
func (s *AuthorizationServer) GetGrant(id domain.GrantIdentifier) (Grant, bool) {
	g, ok := s.available[id]
	return g, ok
}

// EnabledGrants lists enabled grant identifiers in registration order
func (s *AuthorizationServer) EnabledGrants() []domain.GrantIdentifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.GrantIdentifier, 0, len(s.enabled))
	for _, g := range s.enabled {
		ids = append(ids, g.Identifier())
	}
	return ids
}

// ValidateAuthorizationRequest hands the request to the first enabled grant matching response_type
func (s *AuthorizationServer) ValidateAuthorizationRequest(ctx context.Context, req *domain.Request) (*domain.AuthorizationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "authorization_server.validate_authorization_request")
	defer span.End()

	grant, _ := s.matchGrant(func(g Grant) bool { return g.CanRespondToAuthorizationRequest(req) })
	if grant == nil {
		return nil, s.reject(ctx, span, "", apperrors.NewUnsupportedGrantType())
	}
	instrumentation.AddOAuthFlowAttributes(span, string(grant.Identifier()), req.QueryParam("client_id"), "")

	authReq, err := grant.ValidateAuthorizationRequest(ctx, req)
	if err != nil {
		return nil, s.reject(ctx, span, grant.Identifier(), err)
	}

	s.metrics.RecordAuthorizationStarted(ctx, string(grant.Identifier()))
	instrumentation.SetSpanSuccess(span)
	return authReq, nil
}

// CompleteAuthorizationRequest finishes a validated request with the resource owner's decision
func (s *AuthorizationServer) CompleteAuthorizationRequest(ctx context.Context, authReq *domain.AuthorizationRequest, decision domain.AuthorizationDecision) (*domain.Response, error) {
	ctx, span := s.tracer.Start(ctx, "authorization_server.complete_authorization_request")
	defer span.End()

	if authReq == nil || authReq.Client == nil {
		return nil, s.reject(ctx, span, "", errors.New("authorization request is not validated"))
	}
	userID, approved, err := approvedUser(decision)
	if err != nil {
		return nil, s.reject(ctx, span, authReq.GrantTypeID, err)
	}

	s.mu.RLock()
	ttl, enabled := s.ttls[authReq.GrantTypeID]
	s.mu.RUnlock()
	if !enabled {
		return nil, s.reject(ctx, span, authReq.GrantTypeID, apperrors.NewUnsupportedGrantType())
	}
	grant := s.available[authReq.GrantTypeID]
	instrumentation.AddOAuthFlowAttributes(span, string(authReq.GrantTypeID), authReq.Client.ID, userID)

	res, err := grant.CompleteAuthorizationRequest(ctx, authReq, decision, ttl)
	if err != nil {
		return nil, s.reject(ctx, span, authReq.GrantTypeID, err)
	}

	s.metrics.RecordAuthorizationCompleted(ctx, string(authReq.GrantTypeID), approved)
	instrumentation.SetSpanSuccess(span)
	return res, nil
}

// RespondToAccessTokenRequest hands the request to the first enabled grant matching grant_type
func (s *AuthorizationServer) RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response) (*domain.Response, error) {
	ctx, span := s.tracer.Start(ctx, "authorization_server.respond_to_access_token_request")
	defer span.End()

	grant, ttl := s.matchGrant(func(g Grant) bool { return g.CanRespondToAccessTokenRequest(req) })
	if grant == nil {
		s.logger.Debug("No enabled grant for token request", zap.String("grant_type", req.BodyParam("grant_type")))
		return nil, s.reject(ctx, span, "", apperrors.NewUnsupportedGrantType())
	}
	if res == nil {
		res = domain.NewResponse()
	}
	instrumentation.AddOAuthFlowAttributes(span, string(grant.Identifier()), req.BodyParam("client_id"), "")

	out, err := grant.RespondToAccessTokenRequest(ctx, req, res, ttl)
	if err != nil {
		return nil, s.reject(ctx, span, grant.Identifier(), err)
	}

	instrumentation.SetSpanSuccess(span)
	return out, nil
}

func (s *AuthorizationServer) matchGrant(match func(Grant) bool) (Grant, domain.DateInterval) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.enabled {
		if match(g) {
			return g, s.ttls[g.Identifier()]
		}
	}
	return nil, domain.DateInterval{}
}

func (s *AuthorizationServer) reject(ctx context.Context, span trace.Span, grant domain.GrantIdentifier, err error) error {
	instrumentation.RecordError(span, err)
	if oauthErr, ok := apperrors.AsOAuthError(err); ok {
		s.metrics.RecordRejected(ctx, string(grant), oauthErr.Code)
		s.logger.Warn("Request rejected",
			zap.String("grant_type", string(grant)),
			zap.String("error", oauthErr.Code))
		return err
	}
	s.logger.Error("Request failed", zap.String("grant_type", string(grant)), zap.Error(err))
	return err
}
