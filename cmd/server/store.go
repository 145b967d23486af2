package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manorfm/oauth2server/internal/application"
	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/config"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"github.com/manorfm/oauth2server/internal/infrastructure/repository"
	"github.com/manorfm/oauth2server/internal/infrastructure/repository/memory"
	redisrepo "github.com/manorfm/oauth2server/internal/infrastructure/repository/redis"
	"github.com/manorfm/oauth2server/internal/interfaces/http/handlers"
	"go.uber.org/zap"
)

// store bundles the repositories the server runs on with their lifecycle hooks
type store struct {
	repos       application.Repositories
	clientAdmin domain.ClientAdminRepository
	pinger      handlers.Pinger
	saveScope   func(ctx context.Context, scope *domain.Scope) error
	// purge removes expired codes and tokens; nil when the backend expires records itself
	purge  func(ctx context.Context, now time.Time) error
	closer []func()
}

func (s *store) Close() {
	for i := len(s.closer) - 1; i >= 0; i-- {
		s.closer[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	var s *store
	switch cfg.StoreType {
	case config.StorePostgres:
		pg, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s = pg
	default:
		s = openMemory(cfg, logger)
	}

	if cfg.RedisAddr != "" {
		client, err := redisrepo.NewClient(ctx, redisrepo.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closer = append(s.closer, client.Close)
		s.repos.AuthCodes = redisrepo.NewAuthCodeRepository(client, logger)
		logger.Info("Authorization codes stored in redis", zap.String("addr", cfg.RedisAddr))
	}
	return s, nil
}

func openMemory(cfg *config.Config, logger *zap.Logger) *store {
	mem := memory.New(logger, memory.Options{
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		CleanupInterval: time.Minute,
	})
	logger.Warn("Using in-memory storage, state is lost on restart")
	return &store{
		repos: application.Repositories{
			Clients:   mem.Clients(),
			Scopes:    mem.Scopes(),
			Users:     mem.Users(),
			AuthCodes: mem.AuthCodes(),
			Tokens:    mem.Tokens(),
		},
		clientAdmin: mem,
		saveScope: func(_ context.Context, scope *domain.Scope) error {
			mem.SaveScope(scope)
			return nil
		},
		closer: []func(){mem.Stop},
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	db, err := database.NewPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.RunMigrations(database.DefaultMigrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	clients := repository.NewClientRepository(db, logger)
	scopes := repository.NewScopeRepository(db, logger)
	authCodes := repository.NewAuthCodeRepository(db, logger)
	tokens := repository.NewTokenRepository(db, logger, cfg.RefreshTokenTTL)

	return &store{
		repos: application.Repositories{
			Clients:   clients,
			Scopes:    scopes,
			Users:     repository.NewUserRepository(db, logger),
			AuthCodes: authCodes,
			Tokens:    tokens,
		},
		clientAdmin: clients,
		pinger:      db,
		saveScope:   scopes.SaveScope,
		purge: func(ctx context.Context, now time.Time) error {
			codes, errCodes := authCodes.DeleteExpired(ctx, now)
			toks, errTokens := tokens.DeleteExpired(ctx, now)
			if codes+toks > 0 {
				logger.Debug("Purged expired records", zap.Int64("auth_codes", codes), zap.Int64("tokens", toks))
			}
			return errors.Join(errCodes, errTokens)
		},
		closer: []func(){db.Close},
	}, nil
}

// seed registers the configured scopes and the bootstrap admin client
func seed(ctx context.Context, s *store, cfg *config.Config, logger *zap.Logger) error {
	names := append([]string(nil), cfg.Scopes...)
	if cfg.AdminClientID != "" {
		names = append(names, domain.AdminScope)
	}
	for _, name := range names {
		if err := s.saveScope(ctx, &domain.Scope{Name: name}); err != nil {
			return fmt.Errorf("failed to register scope %q: %w", name, err)
		}
	}

	if cfg.AdminClientID == "" || cfg.AdminClientSecret == "" {
		return nil
	}
	now := time.Now()
	admin := &domain.Client{
		ID:        cfg.AdminClientID,
		Name:      "Administrator",
		Secret:    cfg.AdminClientSecret,
		Grants:    []domain.GrantIdentifier{domain.GrantClientCredentials},
		Scopes:    []string{domain.AdminScope},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.clientAdmin.CreateClient(ctx, admin); err != nil {
		return fmt.Errorf("failed to register admin client: %w", err)
	}
	logger.Info("Admin client registered", zap.String("client_id", admin.ID))
	return nil
}

// runPurge calls purge every interval until ctx is done
func runPurge(ctx context.Context, s *store, interval time.Duration, logger *zap.Logger) {
	if s.purge == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.purge(ctx, now); err != nil {
				logger.Error("Failed to purge expired records", zap.Error(err))
			}
		}
	}
}
