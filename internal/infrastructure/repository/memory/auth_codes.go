package memory

import (
	"context"

	"github.com/manorfm/oauth2server/internal/domain"
)

// AuthCodeRepository implements domain.AuthCodeRepository
type AuthCodeRepository struct{ s *Store }

func (r *AuthCodeRepository) GetByIdentifier(_ context.Context, code string) (*domain.AuthCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.authCodes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *AuthCodeRepository) IssueAuthCode(_ context.Context, client *domain.Client, user *domain.User, scopes []*domain.Scope) (*domain.AuthCode, error) {
	return &domain.AuthCode{
		Code:      domain.NewID(),
		ClientID:  client.ID,
		UserID:    domain.UserID(user),
		Scopes:    scopes,
		CreatedAt: r.s.opts.Now(),
	}, nil
}

func (r *AuthCodeRepository) Persist(_ context.Context, code *domain.AuthCode) error {
	cp := *code
	r.s.mu.Lock()
	r.s.authCodes[cp.Code] = &cp
	r.s.mu.Unlock()
	return nil
}

func (r *AuthCodeRepository) IsRevoked(_ context.Context, code string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.authCodes[code]
	if !ok {
		return false, domain.ErrNotFound
	}
	return c.Revoked, nil
}

// Revoke flips the revoked flag under the write lock
func (r *AuthCodeRepository) Revoke(_ context.Context, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.authCodes[code]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Revoked {
		return domain.ErrAlreadyRevoked
	}
	c.Revoked = true
	return nil
}
