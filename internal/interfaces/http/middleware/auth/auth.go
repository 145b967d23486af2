package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/manorfm/oauth2server/internal/domain"
	httperrors "github.com/manorfm/oauth2server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const (
	// AdminScope guards the client administration routes
	AdminScope = domain.AdminScope

	// clockSkew absorbs the whole-second rounding of iat and nbf
	clockSkew = 5 * time.Second
)

// AuthMiddleware verifies access tokens minted by this server
type AuthMiddleware struct {
	ja     *jwtauth.JWTAuth
	logger *zap.Logger
}

// NewAuthMiddleware builds a verifier for alg using verifyKey (the HMAC secret or the RSA public key)
func NewAuthMiddleware(alg string, verifyKey any, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		ja:     jwtauth.New(alg, nil, verifyKey, jwt.WithAcceptableSkew(clockSkew)),
		logger: logger,
	}
}

// Verifier extracts and verifies the bearer token, leaving the result in the request context
func (m *AuthMiddleware) Verifier(next http.Handler) http.Handler {
	return jwtauth.Verifier(m.ja)(next)
}

// Authenticator rejects requests whose token failed verification or is not an access token
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			m.logger.Debug("Bearer token rejected", zap.Error(err))
			unauthorized(w)
			return
		}
		if !isAccessToken(token, claims) {
			m.logger.Warn("Bearer token is not an access token")
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isAccessToken tells access tokens apart from the code and refresh blobs signed with the same key
func isAccessToken(token jwt.Token, claims map[string]any) bool {
	if token.Expiration().IsZero() || token.JwtID() == "" {
		return false
	}
	_, ok := domain.Claims(claims).String("cid")
	return ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="OAuth"`)
	httperrors.RespondWithError(w, httperrors.ErrCodeUnauthorized, "Invalid or missing bearer token", nil, http.StatusUnauthorized)
}

// RequireScope lets through tokens whose space-delimited scope claim contains scope
func (m *AuthMiddleware) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				httperrors.RespondWithError(w, httperrors.ErrCodeUnauthorized, "Invalid or missing bearer token", nil, http.StatusUnauthorized)
				return
			}

			granted, _ := domain.Claims(claims).String("scope")
			for _, s := range strings.Fields(granted) {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}

			client, _ := domain.Claims(claims).String("cid")
			m.logger.Warn("Insufficient scope", zap.String("required", scope), zap.String("client", client))
			httperrors.RespondWithError(w, httperrors.ErrCodeForbidden, "Token lacks the required scope", nil, http.StatusForbidden)
		})
	}
}
