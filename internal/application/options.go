package application

import (
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/instrumentation"
)

const (
	// DefaultAuthCodeTTL is the lifetime of an authorization code
	DefaultAuthCodeTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL applies when the token repository leaves the refresh expiry unset
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

type serverOptions struct {
	requiresPKCE    bool
	authCodeTTL     domain.DateInterval
	refreshTokenTTL domain.DateInterval
	now             func() time.Time
	instrumentation *instrumentation.Instrumentation
}

func defaultOptions() serverOptions {
	return serverOptions{
		requiresPKCE:    true,
		authCodeTTL:     domain.NewDateInterval(DefaultAuthCodeTTL),
		refreshTokenTTL: domain.NewDateInterval(DefaultRefreshTokenTTL),
		now:             time.Now,
	}
}

// Option configures an AuthorizationServer
type Option func(*serverOptions)

// WithRequiresPKCE controls whether authorization code requests must carry a code challenge
func WithRequiresPKCE(required bool) Option {
	return func(o *serverOptions) {
		o.requiresPKCE = required
	}
}

// WithAuthCodeTTL sets the authorization code lifetime
func WithAuthCodeTTL(ttl time.Duration) Option {
	return func(o *serverOptions) {
		if ttl > 0 {
			o.authCodeTTL = domain.NewDateInterval(ttl)
		}
	}
}

// WithRefreshTokenTTL sets the fallback refresh token lifetime
func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(o *serverOptions) {
		if ttl > 0 {
			o.refreshTokenTTL = domain.NewDateInterval(ttl)
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithInstrumentation records metrics and spans through inst
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(o *serverOptions) {
		o.instrumentation = inst
	}
}
