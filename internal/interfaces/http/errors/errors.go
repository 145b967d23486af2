package errors

import (
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Status  int           `json:"status"`
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail represents a validation error detail
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error codes used outside the OAuth2 protocol responses
const (
	ErrCodeValidation   = "validation_failed"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "insufficient_scope"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "server_error"
)

const internalMessage = "internal server error"

// RespondWithError sends a standardized error response
func RespondWithError(w http.ResponseWriter, code string, message string, details []ErrorDetail, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:  status,
		Error:   code,
		Message: message,
		Details: details,
	})
}

// RespondWithOAuthError renders err the way an OAuth2 client expects it.
// An OAuthError carrying a redirect URI becomes a 302 to that URI; any other OAuthError
// becomes a JSON body with its status. Everything else is a 500 that hides the cause.
func RespondWithOAuthError(w http.ResponseWriter, err error, logger *zap.Logger) {
	oauthErr, ok := apperrors.AsOAuthError(err)
	if !ok {
		logger.Error("Unhandled error", zap.Error(err))
		RespondWithError(w, ErrCodeInternal, internalMessage, nil, http.StatusInternalServerError)
		return
	}

	if oauthErr.RedirectURI != "" {
		location, perr := ErrorRedirectURL(oauthErr)
		if perr == nil {
			w.Header().Set("Location", location)
			w.WriteHeader(http.StatusFound)
			return
		}
		logger.Warn("Cannot build error redirect", zap.Error(perr))
	}

	if oauthErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="OAuth"`)
	}
	RespondWithError(w, oauthErr.Code, oauthErr.Message, nil, oauthErr.Status)
}

// ErrorRedirectURL adds error, error_description and state to the error's redirect URI,
// in the fragment for errors marked with InFragment and in the query otherwise
func ErrorRedirectURL(oauthErr *apperrors.OAuthError) (string, error) {
	u, err := url.Parse(oauthErr.RedirectURI)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	if !oauthErr.Fragment {
		params = u.Query()
	}
	params.Set("error", oauthErr.Code)
	params.Set("error_description", oauthErr.Message)
	if oauthErr.State != "" {
		params.Set("state", oauthErr.State)
	}
	if oauthErr.Fragment {
		u.Fragment = ""
		u.RawFragment = ""
		return u.String() + "#" + params.Encode(), nil
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: message,
	}
}

// ValidationErrors is a slice of validation errors
type ValidationErrors []ValidationError

// Add adds a validation error to the slice
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, NewValidationError(field, message))
}

// HasErrors returns true if there are any validation errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToErrorDetails converts validation errors to error details
func (v ValidationErrors) ToErrorDetails() []ErrorDetail {
	details := make([]ErrorDetail, len(v))
	for i, err := range v {
		details[i] = ErrorDetail{
			Field:   err.Field,
			Message: err.Message,
		}
	}
	return details
}
