package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manorfm/oauth2server/internal/application"
	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/config"
	"github.com/manorfm/oauth2server/internal/infrastructure/instrumentation"
	"github.com/manorfm/oauth2server/internal/infrastructure/jwt"
	httprouter "github.com/manorfm/oauth2server/internal/interfaces/http"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultKeyPath = "keys/jwt.pem"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inst, err := instrumentation.New(instrumentation.Config{Enabled: cfg.TracingEnabled})
	if err != nil {
		logger.Fatal("Failed to initialize instrumentation", zap.Error(err))
	}
	defer inst.Shutdown(context.Background())

	keys, err := newJWTService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize JWT service", zap.Error(err))
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()
	if err := seed(ctx, st, cfg, logger); err != nil {
		logger.Fatal("Failed to seed store", zap.Error(err))
	}
	go runPurge(ctx, st, time.Minute, logger)

	server := application.NewAuthorizationServer(st.repos, keys, logger,
		application.WithRequiresPKCE(cfg.RequiresPKCE),
		application.WithAuthCodeTTL(cfg.AuthCodeTTL),
		application.WithRefreshTokenTTL(cfg.RefreshTokenTTL),
		application.WithInstrumentation(inst),
	)
	for _, id := range cfg.EnabledGrants {
		if err := server.EnableGrantType(id, domain.NewDateInterval(cfg.AccessTokenTTL)); err != nil {
			logger.Fatal("Failed to enable grant", zap.String("grant_type", string(id)), zap.Error(err))
		}
	}

	router := httprouter.NewRouter(httprouter.Dependencies{
		Server:      server,
		Users:       st.repos.Users,
		Clients:     st.repos.Clients,
		ClientAdmin: st.clientAdmin,
		Keys:        keys,
		Store:       st.pinger,
		TokenAlg:    keys.SigningMethod().Alg(),
		VerifyKey:   keys.VerificationKey(),
		RateLimit:   rate.Limit(cfg.RateLimitRPS),
		Burst:       cfg.RateLimitBurst,
		Metrics:     inst.Metrics(),
	}, logger)
	defer router.Close()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.Int("port", cfg.ServerPort),
			zap.String("store", cfg.StoreType),
			zap.Strings("grants", grantNames(server.EnabledGrants())))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newJWTService signs with the RSA key at JWT_KEY_PATH, or HS256 with JWT_SECRET when only that is set
func newJWTService(cfg *config.Config, logger *zap.Logger) (*jwt.Service, error) {
	var (
		strategy jwt.Strategy
		err      error
	)
	switch {
	case cfg.JWTKeyPath != "":
		strategy, err = jwt.NewLocalStrategy(cfg.JWTKeyPath, logger)
	case cfg.JWTSecret != "":
		strategy, err = jwt.NewSecretStrategy([]byte(cfg.JWTSecret), logger)
	default:
		strategy, err = jwt.NewLocalStrategy(defaultKeyPath, logger)
	}
	if err != nil {
		return nil, err
	}
	return jwt.NewService(strategy, logger), nil
}

func grantNames(ids []domain.GrantIdentifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
