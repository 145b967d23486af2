package domain

// AuthorizationRequest is the pending result of a validated authorization request.
// It is never persisted; completion takes it together with an explicit AuthorizationDecision.
type AuthorizationRequest struct {
	GrantTypeID         GrantIdentifier
	Client              *Client
	RedirectURI         string
	State               string
	Scopes              []*Scope
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationDecision is the resource owner's answer to an authorization request.
// Implemented only by Approved and Denied.
type AuthorizationDecision interface {
	isAuthorizationDecision()
}

// Approved grants the request on behalf of UserID
type Approved struct {
	UserID string
}

// Denied rejects the request
type Denied struct{}

func (Approved) isAuthorizationDecision() {}
func (Denied) isAuthorizationDecision()   {}
