// Package redis keeps authorization codes in Redis so their lifetime is enforced by key expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	authCodePrefix = "oauth2:auth_code:"
	revokedPrefix  = "oauth2:auth_code_revoked:"
)

var _ domain.AuthCodeRepository = (*AuthCodeRepository)(nil)

// Options contains configuration for the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a rueidis client and pings it
func NewClient(ctx context.Context, opts Options) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// AuthCodeRepository implements domain.AuthCodeRepository on Redis.
// Codes are stored as JSON with a TTL matching their expiry; revocation is a SET NX marker.
type AuthCodeRepository struct {
	client rueidis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthCodeRepository creates a repository over an open client
func NewAuthCodeRepository(client rueidis.Client, logger *zap.Logger) *AuthCodeRepository {
	return &AuthCodeRepository{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (r *AuthCodeRepository) GetByIdentifier(ctx context.Context, code string) (*domain.AuthCode, error) {
	raw, err := r.client.Do(ctx, r.client.B().Get().Key(authCodePrefix+code).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code from redis: %w", err)
	}

	var authCode domain.AuthCode
	if err := json.Unmarshal(raw, &authCode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	revoked, err := r.revokedMarker(ctx, code)
	if err != nil {
		return nil, err
	}
	authCode.Revoked = authCode.Revoked || revoked
	return &authCode, nil
}

func (r *AuthCodeRepository) IssueAuthCode(_ context.Context, client *domain.Client, user *domain.User, scopes []*domain.Scope) (*domain.AuthCode, error) {
	return &domain.AuthCode{
		Code:      domain.NewID(),
		ClientID:  client.ID,
		UserID:    domain.UserID(user),
		Scopes:    scopes,
		FamilyID:  domain.NewID(),
		CreatedAt: r.now(),
	}, nil
}

// Persist stores the code with an expiry equal to its remaining lifetime
func (r *AuthCodeRepository) Persist(ctx context.Context, code *domain.AuthCode) error {
	ttl := code.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return errors.New("authorization code is already expired")
	}

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	cmd := r.client.B().Set().Key(authCodePrefix + code.Code).Value(string(data)).ExSeconds(ttlSeconds(ttl)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save authorization code to redis: %w", err)
	}
	return nil
}

func (r *AuthCodeRepository) IsRevoked(ctx context.Context, code string) (bool, error) {
	revoked, err := r.revokedMarker(ctx, code)
	if err != nil || revoked {
		return revoked, err
	}
	exists, err := r.client.Do(ctx, r.client.B().Exists().Key(authCodePrefix+code).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check authorization code: %w", err)
	}
	if exists == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// Revoke sets the revoked marker with NX so exactly one caller succeeds
func (r *AuthCodeRepository) Revoke(ctx context.Context, code string) error {
	pttl, err := r.client.Do(ctx, r.client.B().Pttl().Key(authCodePrefix+code).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to read authorization code ttl: %w", err)
	}
	// -2: no such key. The marker must outlive the code, so a missing TTL keeps the default.
	if pttl == -2 {
		return domain.ErrNotFound
	}
	ttl := time.Duration(pttl) * time.Millisecond
	if ttl <= 0 {
		ttl = time.Minute
	}

	cmd := r.client.B().Set().Key(revokedPrefix + code).Value("1").Nx().ExSeconds(ttlSeconds(ttl) + 1).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return domain.ErrAlreadyRevoked
		}
		return fmt.Errorf("failed to revoke authorization code: %w", err)
	}
	r.logger.Debug("Authorization code revoked")
	return nil
}

func (r *AuthCodeRepository) revokedMarker(ctx context.Context, code string) (bool, error) {
	n, err := r.client.Do(ctx, r.client.B().Exists().Key(revokedPrefix+code).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation marker: %w", err)
	}
	return n > 0, nil
}

func ttlSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
