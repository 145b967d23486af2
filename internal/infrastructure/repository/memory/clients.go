package memory

import (
	"context"
	"crypto/subtle"

	"github.com/manorfm/oauth2server/internal/domain"
)

// ClientRepository implements domain.ClientRepository
type ClientRepository struct{ s *Store }

func (r *ClientRepository) GetByIdentifier(_ context.Context, clientID string) (*domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[clientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// IsClientValid accepts public clients without a secret and confidential clients with a matching one
func (r *ClientRepository) IsClientValid(_ context.Context, grant domain.GrantIdentifier, client *domain.Client, secret string) (bool, error) {
	if !client.AllowsGrant(grant) {
		return false, nil
	}
	if !client.IsConfidential() {
		return true, nil
	}
	return subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) == 1, nil
}

// ScopeRepository implements domain.ScopeRepository
type ScopeRepository struct{ s *Store }

func (r *ScopeRepository) GetAllByIdentifiers(_ context.Context, names []string) ([]*domain.Scope, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Scope, 0, len(names))
	for _, n := range names {
		if sc, ok := r.s.scopes[n]; ok {
			cp := *sc
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Finalize drops scopes the client is not registered for, reserved ones included
func (r *ScopeRepository) Finalize(_ context.Context, scopes []*domain.Scope, _ domain.GrantIdentifier, client *domain.Client, _ string) ([]*domain.Scope, error) {
	out := make([]*domain.Scope, 0, len(scopes))
	for _, sc := range scopes {
		if client.AllowsScope(sc.Name) {
			out = append(out, sc)
		}
	}
	return out, nil
}
