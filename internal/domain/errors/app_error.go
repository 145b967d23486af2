package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth2 error codes (RFC 6749 §5.2, §4.1.2.1)
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidScope         = "invalid_scope"
	CodeInvalidGrant         = "invalid_grant"
	CodeAccessDenied         = "access_denied"
	CodeUnsupportedGrantType = "unsupported_grant_type"
)

// OAuthError is a protocol error carrying the HTTP status it maps to.
// RedirectURI is set when the error can be delivered to the client by redirect.
type OAuthError struct {
	Code        string `json:"error"`
	Message     string `json:"message"`
	Status      int    `json:"status"`
	Param       string `json:"-"`
	RedirectURI string `json:"-"`
	State       string `json:"-"`
	// Fragment delivers redirected errors in the URI fragment instead of the query
	Fragment bool  `json:"-"`
	Err      error `json:"-"`
}

// Error returns the error message
func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *OAuthError) Unwrap() error {
	return e.Err
}

// WithCause attaches an underlying error
func (e *OAuthError) WithCause(err error) *OAuthError {
	e.Err = err
	return e
}

// WithState attaches the client state echoed on redirect
func (e *OAuthError) WithState(state string) *OAuthError {
	e.State = state
	return e
}

// InFragment marks the error for delivery in the redirect URI fragment
func (e *OAuthError) InFragment() *OAuthError {
	e.Fragment = true
	return e
}

// NewInvalidRequest creates an error for a missing or malformed parameter
func NewInvalidRequest(param string, hint ...string) *OAuthError {
	msg := fmt.Sprintf("The request is missing a required parameter, includes an invalid parameter value, includes a parameter more than once, or is otherwise malformed. Check the `%s` parameter", param)
	if len(hint) > 0 && hint[0] != "" {
		msg = fmt.Sprintf("%s: %s", msg, hint[0])
	}
	return &OAuthError{
		Code:    CodeInvalidRequest,
		Message: msg,
		Status:  http.StatusBadRequest,
		Param:   param,
	}
}

// NewInvalidClient creates an error for failed client authentication
func NewInvalidClient() *OAuthError {
	return &OAuthError{
		Code:    CodeInvalidClient,
		Message: "Client authentication failed",
		Status:  http.StatusUnauthorized,
	}
}

// NewInvalidScope creates an error for an unknown scope
func NewInvalidScope(name, redirectURI string) *OAuthError {
	return &OAuthError{
		Code:        CodeInvalidScope,
		Message:     fmt.Sprintf("The requested scope is invalid, unknown, or malformed: %s", name),
		Status:      http.StatusBadRequest,
		Param:       name,
		RedirectURI: redirectURI,
	}
}

// NewInvalidGrant creates an error for a bad code, refresh token or resource owner credentials
func NewInvalidGrant(reason string) *OAuthError {
	msg := "The provided authorization grant or refresh token is invalid, expired, revoked, does not match the redirection URI used in the authorization request, or was issued to another client"
	if reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, reason)
	}
	return &OAuthError{
		Code:    CodeInvalidGrant,
		Message: msg,
		Status:  http.StatusBadRequest,
	}
}

// NewAccessDenied creates the error returned when the resource owner declines
func NewAccessDenied(redirectURI, state string) *OAuthError {
	return &OAuthError{
		Code:        CodeAccessDenied,
		Message:     "The resource owner or authorization server denied the request",
		Status:      http.StatusBadRequest,
		RedirectURI: redirectURI,
		State:       state,
	}
}

// NewUnsupportedGrantType creates the error returned when no enabled grant claims the request
func NewUnsupportedGrantType() *OAuthError {
	return &OAuthError{
		Code:    CodeUnsupportedGrantType,
		Message: "The authorization grant type is not supported by the authorization server",
		Status:  http.StatusBadRequest,
	}
}

// AsOAuthError extracts an OAuthError from an error chain
func AsOAuthError(err error) (*OAuthError, bool) {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	oauthErr, ok := AsOAuthError(err)
	return ok && oauthErr.Code == code
}

// IsInvalidRequest checks if the error is an invalid_request error
func IsInvalidRequest(err error) bool {
	return hasCode(err, CodeInvalidRequest)
}

// IsInvalidClient checks if the error is an invalid_client error
func IsInvalidClient(err error) bool {
	return hasCode(err, CodeInvalidClient)
}

// IsInvalidScope checks if the error is an invalid_scope error
func IsInvalidScope(err error) bool {
	return hasCode(err, CodeInvalidScope)
}

// IsInvalidGrant checks if the error is an invalid_grant error
func IsInvalidGrant(err error) bool {
	return hasCode(err, CodeInvalidGrant)
}

// IsAccessDenied checks if the error is an access_denied error
func IsAccessDenied(err error) bool {
	return hasCode(err, CodeAccessDenied)
}

// IsUnsupportedGrantType checks if the error is an unsupported_grant_type error
func IsUnsupportedGrantType(err error) bool {
	return hasCode(err, CodeUnsupportedGrantType)
}
