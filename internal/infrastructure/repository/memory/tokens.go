package memory

import (
	"context"

	"github.com/manorfm/oauth2server/internal/domain"
	"go.uber.org/zap"
)

// TokenRepository implements domain.TokenRepository
type TokenRepository struct{ s *Store }

func (r *TokenRepository) IssueToken(_ context.Context, client *domain.Client, scopes []*domain.Scope, user *domain.User) (*domain.AccessToken, error) {
	return &domain.AccessToken{
		Token:     domain.NewID(),
		ClientID:  client.ID,
		UserID:    domain.UserID(user),
		Scopes:    scopes,
		CreatedAt: r.s.opts.Now(),
	}, nil
}

func (r *TokenRepository) IssueRefreshToken(_ context.Context, access *domain.AccessToken) (*domain.RefreshToken, error) {
	if r.s.opts.DisableRefreshTokens {
		return nil, nil
	}
	now := r.s.opts.Now()
	return &domain.RefreshToken{
		Token:       domain.NewID(),
		AccessToken: access.Token,
		ClientID:    access.ClientID,
		UserID:      access.UserID,
		Scopes:      access.Scopes,
		FamilyID:    access.FamilyID,
		ExpiresAt:   now.Add(r.s.opts.RefreshTokenTTL),
		CreatedAt:   now,
	}, nil
}

func (r *TokenRepository) Persist(_ context.Context, token *domain.AccessToken) error {
	cp := *token
	r.s.mu.Lock()
	r.s.accessTokens[cp.Token] = &cp
	r.s.mu.Unlock()
	return nil
}

func (r *TokenRepository) PersistRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	cp := *token
	r.s.mu.Lock()
	r.s.refreshTokens[cp.Token] = &cp
	r.s.mu.Unlock()
	return nil
}

func (r *TokenRepository) RevokeAccessToken(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.accessTokens[token]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Revoked {
		return domain.ErrAlreadyRevoked
	}
	t.Revoked = true
	return nil
}

func (r *TokenRepository) RevokeRefreshToken(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refreshTokens[token]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Revoked {
		return domain.ErrAlreadyRevoked
	}
	t.Revoked = true
	return nil
}

func (r *TokenRepository) IsRefreshTokenRevoked(_ context.Context, token string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.refreshTokens[token]
	if !ok {
		return false, domain.ErrNotFound
	}
	return t.Revoked, nil
}

func (r *TokenRepository) GetByRefreshToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.refreshTokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// GetAccessToken returns a stored access token, used by tests and introspection
func (r *TokenRepository) GetAccessToken(_ context.Context, token string) (*domain.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.accessTokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TokenRepository) RevokeFamily(_ context.Context, familyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, t := range r.s.accessTokens {
		if t.FamilyID == familyID && !t.Revoked {
			t.Revoked = true
			count++
		}
	}
	for _, t := range r.s.refreshTokens {
		if t.FamilyID == familyID && !t.Revoked {
			t.Revoked = true
			count++
		}
	}
	r.s.logger.Info("Token family revoked", zap.String("family_id", familyID), zap.Int("revoked", count))
	return nil
}
