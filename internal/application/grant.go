package application

import (
	"context"
	"errors"

	"github.com/manorfm/oauth2server/internal/domain"
)

var (
	// ErrDecisionRequired is returned when an authorization request is completed without a decision
	ErrDecisionRequired = errors.New("authorization request must be completed with an explicit decision")
	// ErrUserRequired is returned when an approval does not name the resource owner
	ErrUserRequired = errors.New("approved authorization request requires a user")
)

// Grant is one OAuth2 grant type. The AuthorizationServer picks the first enabled grant whose
// CanRespondTo predicate matches.
type Grant interface {
	Identifier() domain.GrantIdentifier

	CanRespondToAuthorizationRequest(req *domain.Request) bool
	ValidateAuthorizationRequest(ctx context.Context, req *domain.Request) (*domain.AuthorizationRequest, error)
	CompleteAuthorizationRequest(ctx context.Context, authReq *domain.AuthorizationRequest, decision domain.AuthorizationDecision, accessTokenTTL domain.DateInterval) (*domain.Response, error)

	CanRespondToAccessTokenRequest(req *domain.Request) bool
	RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response, accessTokenTTL domain.DateInterval) (*domain.Response, error)
}

// Identifier returns the grant type wire value
func (t *grantToolkit) Identifier() domain.GrantIdentifier {
	return t.identifier
}

// CanRespondToAuthorizationRequest is false unless a grant overrides it
func (t *grantToolkit) CanRespondToAuthorizationRequest(*domain.Request) bool {
	return false
}

// ValidateAuthorizationRequest fails with ErrGrantNotSupported unless a grant overrides it
func (t *grantToolkit) ValidateAuthorizationRequest(context.Context, *domain.Request) (*domain.AuthorizationRequest, error) {
	return nil, domain.ErrGrantNotSupported
}

// CompleteAuthorizationRequest fails with ErrGrantNotSupported unless a grant overrides it
func (t *grantToolkit) CompleteAuthorizationRequest(context.Context, *domain.AuthorizationRequest, domain.AuthorizationDecision, domain.DateInterval) (*domain.Response, error) {
	return nil, domain.ErrGrantNotSupported
}

// CanRespondToAccessTokenRequest matches when the body grant_type equals the identifier
func (t *grantToolkit) CanRespondToAccessTokenRequest(req *domain.Request) bool {
	return req.BodyParam("grant_type") == string(t.identifier)
}

// RespondToAccessTokenRequest fails with ErrGrantNotSupported unless a grant overrides it
func (t *grantToolkit) RespondToAccessTokenRequest(context.Context, *domain.Request, *domain.Response, domain.DateInterval) (*domain.Response, error) {
	return nil, domain.ErrGrantNotSupported
}

// approvedUser unpacks a decision into the approving user id
func approvedUser(decision domain.AuthorizationDecision) (string, bool, error) {
	switch d := decision.(type) {
	case domain.Approved:
		if d.UserID == "" {
			return "", false, ErrUserRequired
		}
		return d.UserID, true, nil
	case *domain.Approved:
		if d == nil || d.UserID == "" {
			return "", false, ErrUserRequired
		}
		return d.UserID, true, nil
	case domain.Denied, *domain.Denied:
		return "", false, nil
	default:
		return "", false, ErrDecisionRequired
	}
}
