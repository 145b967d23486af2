// Package repository holds the PostgreSQL implementations of the authorization server repositories.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/manorfm/oauth2server/internal/domain"
)

var (
	_ domain.ClientRepository               = (*ClientRepository)(nil)
	_ domain.ClientAdminRepository          = (*ClientRepository)(nil)
	_ domain.ScopeRepository                = (*ScopeRepository)(nil)
	_ domain.UserRepository                 = (*UserRepository)(nil)
	_ domain.UserAdminRepository            = (*UserRepository)(nil)
	_ domain.ExtraAccessTokenFieldsProvider = (*UserRepository)(nil)
	_ domain.AuthCodeRepository             = (*AuthCodeRepository)(nil)
	_ domain.TokenRepository                = (*TokenRepository)(nil)
)

// notFound maps pgx.ErrNoRows to domain.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// scopeColumn encodes scopes as a JSON array of names
func scopeColumn(scopes []*domain.Scope) ([]byte, error) {
	b, err := json.Marshal(domain.ScopeNames(scopes))
	if err != nil {
		return nil, fmt.Errorf("encode scopes: %w", err)
	}
	return b, nil
}

func scopesFromColumn(raw []byte) ([]*domain.Scope, error) {
	var names []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("decode scopes: %w", err)
		}
	}
	scopes := make([]*domain.Scope, 0, len(names))
	for _, n := range names {
		scopes = append(scopes, &domain.Scope{Name: n})
	}
	return scopes, nil
}

func jsonColumn(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}
	return b, nil
}
