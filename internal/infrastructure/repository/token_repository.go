package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"go.uber.org/zap"
)

// TokenRepository stores access and refresh tokens in PostgreSQL
type TokenRepository struct {
	db              *database.Postgres
	logger          *zap.Logger
	refreshTokenTTL time.Duration
}

// NewTokenRepository creates a new TokenRepository. A zero refreshTokenTTL leaves the expiry to the engine.
func NewTokenRepository(db *database.Postgres, logger *zap.Logger, refreshTokenTTL time.Duration) *TokenRepository {
	return &TokenRepository{
		db:              db,
		logger:          logger,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (r *TokenRepository) IssueToken(_ context.Context, client *domain.Client, scopes []*domain.Scope, user *domain.User) (*domain.AccessToken, error) {
	return &domain.AccessToken{
		Token:     domain.NewID(),
		ClientID:  client.ID,
		UserID:    domain.UserID(user),
		Scopes:    scopes,
		CreatedAt: time.Now(),
	}, nil
}

func (r *TokenRepository) IssueRefreshToken(_ context.Context, access *domain.AccessToken) (*domain.RefreshToken, error) {
	refresh := &domain.RefreshToken{
		Token:       domain.NewID(),
		AccessToken: access.Token,
		ClientID:    access.ClientID,
		UserID:      access.UserID,
		Scopes:      access.Scopes,
		FamilyID:    access.FamilyID,
		CreatedAt:   time.Now(),
	}
	if r.refreshTokenTTL > 0 {
		refresh.ExpiresAt = refresh.CreatedAt.Add(r.refreshTokenTTL)
	}
	return refresh, nil
}

func (r *TokenRepository) Persist(ctx context.Context, token *domain.AccessToken) error {
	scopes, err := scopeColumn(token.Scopes)
	if err != nil {
		return err
	}
	if err := r.db.Exec(ctx, `
		INSERT INTO oauth2_access_tokens (token, client_id, user_id, scopes, family_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, token.Token, token.ClientID, token.UserID, scopes, token.FamilyID, token.ExpiresAt, token.Revoked, token.CreatedAt); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	return nil
}

func (r *TokenRepository) PersistRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	scopes, err := scopeColumn(token.Scopes)
	if err != nil {
		return err
	}
	if err := r.db.Exec(ctx, `
		INSERT INTO oauth2_refresh_tokens (token, access_token, client_id, user_id, scopes, family_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, token.Token, token.AccessToken, token.ClientID, token.UserID, scopes, token.FamilyID, token.ExpiresAt,
		token.Revoked, token.CreatedAt); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAccessToken(ctx context.Context, token string) error {
	tag, err := r.db.ExecRaw(ctx, `
		UPDATE oauth2_access_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE
	`, token)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return existsOrNotFound(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM oauth2_access_tokens WHERE token = $1)`, token)
}

// RevokeRefreshToken is the rotation guard: exactly one caller flips the row
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	tag, err := r.db.ExecRaw(ctx, `
		UPDATE oauth2_refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE
	`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return existsOrNotFound(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM oauth2_refresh_tokens WHERE token = $1)`, token)
}

func (r *TokenRepository) IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error) {
	var revoked bool
	if err := r.db.QueryRow(ctx, `SELECT revoked FROM oauth2_refresh_tokens WHERE token = $1`, token).Scan(&revoked); err != nil {
		return false, notFound(err)
	}
	return revoked, nil
}

func (r *TokenRepository) GetByRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refresh := &domain.RefreshToken{}
	var scopes []byte
	err := r.db.QueryRow(ctx, `
		SELECT token, access_token, client_id, user_id, scopes, family_id, expires_at, revoked, created_at
		FROM oauth2_refresh_tokens WHERE token = $1
	`, token).Scan(&refresh.Token, &refresh.AccessToken, &refresh.ClientID, &refresh.UserID, &scopes,
		&refresh.FamilyID, &refresh.ExpiresAt, &refresh.Revoked, &refresh.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if refresh.Scopes, err = scopesFromColumn(scopes); err != nil {
		return nil, err
	}
	return refresh, nil
}

// GetAccessToken loads a stored access token
func (r *TokenRepository) GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	access := &domain.AccessToken{}
	var scopes []byte
	err := r.db.QueryRow(ctx, `
		SELECT token, client_id, user_id, scopes, family_id, expires_at, revoked, created_at
		FROM oauth2_access_tokens WHERE token = $1
	`, token).Scan(&access.Token, &access.ClientID, &access.UserID, &scopes, &access.FamilyID,
		&access.ExpiresAt, &access.Revoked, &access.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if access.Scopes, err = scopesFromColumn(scopes); err != nil {
		return nil, err
	}
	return access, nil
}

// RevokeFamily revokes every access and refresh token of a lineage in one transaction
func (r *TokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin family revocation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	accessTag, err := tx.Exec(ctx, `
		UPDATE oauth2_access_tokens SET revoked = TRUE WHERE family_id = $1 AND revoked = FALSE
	`, familyID)
	if err != nil {
		return fmt.Errorf("revoke family access tokens: %w", err)
	}
	refreshTag, err := tx.Exec(ctx, `
		UPDATE oauth2_refresh_tokens SET revoked = TRUE WHERE family_id = $1 AND revoked = FALSE
	`, familyID)
	if err != nil {
		return fmt.Errorf("revoke family refresh tokens: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit family revocation: %w", err)
	}

	r.logger.Info("Token family revoked",
		zap.String("family_id", familyID),
		zap.Int64("access_tokens", accessTag.RowsAffected()),
		zap.Int64("refresh_tokens", refreshTag.RowsAffected()))
	return nil
}

// DeleteExpired purges tokens past their expiry
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"oauth2_refresh_tokens", "oauth2_access_tokens"} {
		tag, err := r.db.ExecRaw(ctx, `DELETE FROM `+table+` WHERE expires_at <= $1`, now)
		if err != nil {
			return total, fmt.Errorf("delete expired from %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
