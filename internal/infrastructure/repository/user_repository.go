package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/database"
	"github.com/manorfm/oauth2server/internal/infrastructure/password"
	"go.uber.org/zap"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// UserRepository stores resource owners in PostgreSQL
type UserRepository struct {
	logger *zap.Logger
	db     *database.Postgres
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.Postgres, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) GetByIdentifier(ctx context.Context, userID string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetUserByCredentials looks a user up by username and verifies the bcrypt hash
func (r *UserRepository) GetUserByCredentials(ctx context.Context, identifier, plain string, grant domain.GrantIdentifier, client *domain.Client) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, identifier).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	if err := password.CheckPassword(plain, user.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			r.logger.Debug("Password mismatch",
				zap.String("grant_type", string(grant)),
				zap.String("client_id", client.ID))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("check password: %w", err)
	}
	return user, nil
}

// ExtraAccessTokenFields adds profile claims to access tokens
func (r *UserRepository) ExtraAccessTokenFields(_ context.Context, user *domain.User) (map[string]any, error) {
	fields := map[string]any{}
	if user.Username != "" {
		fields["username"] = user.Username
	}
	if user.Email != "" {
		fields["email"] = user.Email
	}
	return fields, nil
}

// CreateUser inserts a user. PasswordHash must already be a bcrypt hash.
func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = domain.NewID()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return r.db.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
}
