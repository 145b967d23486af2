package repository

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"go.uber.org/zap"
)

const clientColumns = `id, name, secret, redirect_uris, grant_types, scopes, created_at, updated_at`

// ClientRepository stores OAuth2 clients in PostgreSQL
type ClientRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewClientRepository creates a new ClientRepository
func NewClientRepository(db *database.Postgres, logger *zap.Logger) *ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ClientRepository) GetByIdentifier(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth2_clients WHERE id = $1`, clientID))
	if err != nil {
		err = notFound(err)
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("Failed to get client", zap.String("client_id", clientID), zap.Error(err))
		}
		return nil, err
	}
	return client, nil
}

// IsClientValid checks the grant is allowed and, for confidential clients, the secret
func (r *ClientRepository) IsClientValid(_ context.Context, grant domain.GrantIdentifier, client *domain.Client, secret string) (bool, error) {
	if !client.AllowsGrant(grant) {
		return false, nil
	}
	if !client.IsConfidential() {
		return true, nil
	}
	return subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) == 1, nil
}

// CreateClient inserts or replaces a client registration
func (r *ClientRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	redirectURIs, err := jsonColumn(client.RedirectURIs)
	if err != nil {
		return err
	}
	grantTypes, err := jsonColumn(client.Grants)
	if err != nil {
		return err
	}
	scopes, err := jsonColumn(client.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO oauth2_clients (id, name, secret, redirect_uris, grant_types, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, secret = EXCLUDED.secret, redirect_uris = EXCLUDED.redirect_uris,
			grant_types = EXCLUDED.grant_types, scopes = EXCLUDED.scopes, updated_at = EXCLUDED.updated_at
	`, client.ID, client.Name, client.Secret, redirectURIs, grantTypes, scopes, client.CreatedAt, client.UpdatedAt)
}

func (r *ClientRepository) ListClients(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.db.Query(ctx, `SELECT `+clientColumns+` FROM oauth2_clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []*domain.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *ClientRepository) DeleteClient(ctx context.Context, id string) error {
	tag, err := r.db.ExecRaw(ctx, `DELETE FROM oauth2_clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	client := &domain.Client{}
	var redirectURIs, grantTypes, scopes []byte
	if err := row.Scan(&client.ID, &client.Name, &client.Secret, &redirectURIs, &grantTypes, &scopes,
		&client.CreatedAt, &client.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(redirectURIs, &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("decode redirect uris: %w", err)
	}
	if err := json.Unmarshal(grantTypes, &client.Grants); err != nil {
		return nil, fmt.Errorf("decode grant types: %w", err)
	}
	if err := json.Unmarshal(scopes, &client.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	return client, nil
}
