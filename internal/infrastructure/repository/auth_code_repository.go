package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"go.uber.org/zap"
)

// AuthCodeRepository stores authorization codes in PostgreSQL
type AuthCodeRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewAuthCodeRepository creates a new AuthCodeRepository
func NewAuthCodeRepository(db *database.Postgres, logger *zap.Logger) *AuthCodeRepository {
	return &AuthCodeRepository{
		db:     db,
		logger: logger,
	}
}

func (r *AuthCodeRepository) GetByIdentifier(ctx context.Context, code string) (*domain.AuthCode, error) {
	authCode := &domain.AuthCode{}
	var scopes []byte
	err := r.db.QueryRow(ctx, `
		SELECT code, client_id, user_id, scopes, redirect_uri, code_challenge, code_challenge_method,
			family_id, expires_at, revoked, created_at
		FROM oauth2_auth_codes WHERE code = $1
	`, code).Scan(&authCode.Code, &authCode.ClientID, &authCode.UserID, &scopes, &authCode.RedirectURI,
		&authCode.CodeChallenge, &authCode.CodeChallengeMethod, &authCode.FamilyID, &authCode.ExpiresAt,
		&authCode.Revoked, &authCode.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	if authCode.Scopes, err = scopesFromColumn(scopes); err != nil {
		return nil, err
	}
	return authCode, nil
}

// IssueAuthCode mints an unsaved code; the engine stamps expiry and PKCE fields before Persist
func (r *AuthCodeRepository) IssueAuthCode(_ context.Context, client *domain.Client, user *domain.User, scopes []*domain.Scope) (*domain.AuthCode, error) {
	return &domain.AuthCode{
		Code:      domain.NewID(),
		ClientID:  client.ID,
		UserID:    domain.UserID(user),
		Scopes:    scopes,
		FamilyID:  domain.NewID(),
		CreatedAt: time.Now(),
	}, nil
}

func (r *AuthCodeRepository) Persist(ctx context.Context, code *domain.AuthCode) error {
	scopes, err := scopeColumn(code.Scopes)
	if err != nil {
		return err
	}
	if err := r.db.Exec(ctx, `
		INSERT INTO oauth2_auth_codes (code, client_id, user_id, scopes, redirect_uri, code_challenge,
			code_challenge_method, family_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, code.Code, code.ClientID, code.UserID, scopes, code.RedirectURI, code.CodeChallenge,
		code.CodeChallengeMethod, code.FamilyID, code.ExpiresAt, code.Revoked, code.CreatedAt); err != nil {
		return fmt.Errorf("persist auth code: %w", err)
	}
	return nil
}

func (r *AuthCodeRepository) IsRevoked(ctx context.Context, code string) (bool, error) {
	var revoked bool
	if err := r.db.QueryRow(ctx, `SELECT revoked FROM oauth2_auth_codes WHERE code = $1`, code).Scan(&revoked); err != nil {
		return false, notFound(err)
	}
	return revoked, nil
}

// Revoke marks the code used. Only one concurrent caller sees the row flip.
func (r *AuthCodeRepository) Revoke(ctx context.Context, code string) error {
	tag, err := r.db.ExecRaw(ctx, `
		UPDATE oauth2_auth_codes SET revoked = TRUE WHERE code = $1 AND revoked = FALSE
	`, code)
	if err != nil {
		return fmt.Errorf("revoke auth code: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return existsOrNotFound(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM oauth2_auth_codes WHERE code = $1)`, code)
}

// DeleteExpired purges codes past their expiry
func (r *AuthCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.ExecRaw(ctx, `DELETE FROM oauth2_auth_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired auth codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// existsOrNotFound resolves a zero-row revoke into ErrAlreadyRevoked or ErrNotFound
func existsOrNotFound(ctx context.Context, db *database.Postgres, query, id string) error {
	var exists bool
	if err := db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyRevoked
}
