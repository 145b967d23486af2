package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/instrumentation"
	"github.com/manorfm/oauth2server/internal/interfaces/http/handlers"
	"github.com/manorfm/oauth2server/internal/interfaces/http/middleware/auth"
	"github.com/manorfm/oauth2server/internal/interfaces/http/middleware/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dependencies wires the router to the engine and its stores
type Dependencies struct {
	Server      handlers.AuthorizationServer
	Users       domain.UserRepository
	Clients     domain.ClientRepository
	ClientAdmin domain.ClientAdminRepository
	Keys        handlers.KeySet
	// Store is pinged by the readiness check; nil when storage is in-process
	Store handlers.Pinger

	// TokenAlg and VerifyKey verify bearer tokens on the admin routes
	TokenAlg  string
	VerifyKey any

	// Consent defaults to HTTP Basic authentication of the resource owner
	Consent handlers.ConsentFunc

	RateLimit rate.Limit
	Burst     int
	Metrics   *instrumentation.Metrics
}

// Router serves the OAuth2 endpoints, client administration and health checks
type Router struct {
	router  *chi.Mux
	limiter *ratelimit.RateLimiter
}

// NewRouter wires the handlers and middleware over deps
func NewRouter(deps Dependencies, logger *zap.Logger) *Router {
	consent := deps.Consent
	if consent == nil {
		consent = handlers.BasicAuthConsent(deps.Users)
	}

	oauth2Handler := handlers.NewOAuth2Handler(deps.Server, consent, logger)
	clientHandler := handlers.NewClientHandler(deps.Clients, deps.ClientAdmin, logger)
	systemHandler := handlers.NewSystemHandler(deps.Keys, deps.Store, logger)
	authMiddleware := auth.NewAuthMiddleware(deps.TokenAlg, deps.VerifyKey, logger)

	router := createRouter()
	rateLimiter := ratelimit.NewRateLimiter(deps.RateLimit, deps.Burst, 3*time.Minute, deps.Metrics, logger)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", systemHandler.HealthHandler)
		r.Get("/health/ready", systemHandler.ReadyHandler)
		r.Get("/.well-known/jwks.json", systemHandler.JWKSHandler)
	})

	// Protocol endpoints
	router.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Get("/authorize", oauth2Handler.AuthorizeHandler)
		r.Post("/token", oauth2Handler.TokenHandler)
	})

	// Admin routes
	router.Route("/admin/clients", func(r chi.Router) {
		r.Use(authMiddleware.Verifier, authMiddleware.Authenticator, authMiddleware.RequireScope(auth.AdminScope))
		r.Post("/", clientHandler.CreateClientHandler)
		r.Get("/", clientHandler.ListClientsHandler)
		r.Get("/{id}", clientHandler.GetClientHandler)
		r.Delete("/{id}", clientHandler.DeleteClientHandler)
	})

	return &Router{router: router, limiter: rateLimiter}
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.limiter.Stop()
}
