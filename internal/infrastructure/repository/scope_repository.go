package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"go.uber.org/zap"
)

// ScopeRepository stores scope definitions in PostgreSQL
type ScopeRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewScopeRepository creates a new ScopeRepository
func NewScopeRepository(db *database.Postgres, logger *zap.Logger) *ScopeRepository {
	return &ScopeRepository{
		db:     db,
		logger: logger,
	}
}

// GetAllByIdentifiers returns the known scopes among names, in request order
func (r *ScopeRepository) GetAllByIdentifiers(ctx context.Context, names []string) ([]*domain.Scope, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, description, metadata FROM oauth2_scopes WHERE name = ANY($1)
	`, names)
	if err != nil {
		return nil, fmt.Errorf("get scopes: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*domain.Scope, len(names))
	for rows.Next() {
		scope := &domain.Scope{}
		var metadata []byte
		if err := rows.Scan(&scope.Name, &scope.Description, &metadata); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &scope.Metadata); err != nil {
				return nil, fmt.Errorf("decode scope metadata: %w", err)
			}
		}
		found[scope.Name] = scope
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scopes := make([]*domain.Scope, 0, len(found))
	for _, n := range names {
		if s, ok := found[n]; ok {
			scopes = append(scopes, s)
		}
	}
	return scopes, nil
}

// Finalize drops scopes the client is not registered for, reserved ones included
func (r *ScopeRepository) Finalize(_ context.Context, scopes []*domain.Scope, grant domain.GrantIdentifier, client *domain.Client, _ string) ([]*domain.Scope, error) {
	out := make([]*domain.Scope, 0, len(scopes))
	for _, s := range scopes {
		if client.AllowsScope(s.Name) {
			out = append(out, s)
			continue
		}
		r.logger.Debug("Scope dropped by client policy",
			zap.String("client_id", client.ID),
			zap.String("grant_type", string(grant)),
			zap.String("scope", s.Name))
	}
	return out, nil
}

// SaveScope inserts or replaces a scope definition
func (r *ScopeRepository) SaveScope(ctx context.Context, scope *domain.Scope) error {
	metadata, err := jsonColumn(scope.Metadata)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
		INSERT INTO oauth2_scopes (name, description, metadata) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, metadata = EXCLUDED.metadata
	`, scope.Name, scope.Description, metadata)
}
