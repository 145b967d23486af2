package memory

import (
	"context"
	"errors"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/infrastructure/password"
)

// UserRepository implements domain.UserRepository
type UserRepository struct{ s *Store }

func (r *UserRepository) GetByIdentifier(_ context.Context, userID string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByCredentials looks the user up by username and checks the bcrypt hash
func (r *UserRepository) GetUserByCredentials(_ context.Context, identifier, plain string, _ domain.GrantIdentifier, _ *domain.Client) (*domain.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.usernames[identifier]
	var u *domain.User
	if ok {
		u = r.s.users[id]
	}
	r.s.mu.RUnlock()
	if u == nil {
		return nil, domain.ErrNotFound
	}

	if err := password.CheckPassword(plain, u.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	cp := *u
	return &cp, nil
}

// ExtraAccessTokenFields adds the username to access tokens
func (r *UserRepository) ExtraAccessTokenFields(_ context.Context, user *domain.User) (map[string]any, error) {
	if user.Username == "" {
		return nil, nil
	}
	return map[string]any{"username": user.Username}, nil
}
