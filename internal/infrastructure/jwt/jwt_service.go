package jwt

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/oauth2server/internal/domain"
	"go.uber.org/zap"
)

const (
	// JWKSCacheDuration bounds how long a rendered JWKS document is reused
	JWKSCacheDuration = 5 * time.Minute
	// DefaultLeeway tolerates clock skew on exp and nbf
	DefaultLeeway = 5 * time.Second
)

// Service implements domain.JWT on top of a signing Strategy
type Service struct {
	strategy Strategy
	logger   *zap.Logger
	leeway   time.Duration
	cache    *jwksCache
	mu       sync.RWMutex
}

type jwksCache struct {
	keys     map[string]any
	lastSync time.Time
	mu       sync.RWMutex
}

var _ domain.JWT = (*Service)(nil)

// NewService creates a Service
func NewService(strategy Strategy, logger *zap.Logger) *Service {
	return &Service{
		strategy: strategy,
		logger:   logger,
		leeway:   DefaultLeeway,
		cache:    &jwksCache{keys: map[string]any{}},
	}
}

// Sign encodes claims as a compact JWS carrying the current kid
func (s *Service) Sign(_ context.Context, claims domain.Claims) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token := jwt.NewWithClaims(s.strategy.SigningMethod(), jwt.MapClaims(claims))
	token.Header["kid"] = s.strategy.KeyID()

	signed, err := token.SignedString(s.strategy.SigningKey())
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, exp and nbf and returns the claims
func (s *Service) Verify(_ context.Context, tokenString string) (domain.Claims, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	method := s.strategy.SigningMethod()
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != method.Alg() {
			return nil, ErrInvalidSigningMethod
		}
		kid, _ := token.Header["kid"].(string)
		return s.strategy.VerificationKey(kid)
	},
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			s.logger.Debug("Token expired", zap.Error(err))
			return nil, ErrTokenExpired
		case errors.Is(err, ErrInvalidSigningMethod), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			s.logger.Warn("Token signature rejected", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		default:
			s.logger.Debug("Failed to parse token", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return domain.Claims(claims), nil
}

// SigningMethod exposes the JWS algorithm for middleware that verifies this server's tokens
func (s *Service) SigningMethod() jwt.SigningMethod {
	return s.strategy.SigningMethod()
}

// SigningKey returns the current signing key
func (s *Service) SigningKey() any {
	return s.strategy.SigningKey()
}

// VerificationKey returns the current verification key
func (s *Service) VerificationKey() any {
	key, _ := s.strategy.VerificationKey("")
	return key
}

// GetPublicKey returns the RSA public key, nil when signing with a shared secret
func (s *Service) GetPublicKey() *rsa.PublicKey {
	return s.strategy.PublicKey()
}

// GetJWKS renders the public signing keys. Symmetric strategies publish an empty set.
func (s *Service) GetJWKS(_ context.Context) (map[string]any, error) {
	s.cache.mu.RLock()
	if !s.cache.lastSync.IsZero() && time.Since(s.cache.lastSync) < JWKSCacheDuration {
		keys := s.cache.keys
		s.cache.mu.RUnlock()
		return keys, nil
	}
	s.cache.mu.RUnlock()

	jwks := []map[string]any{}
	if publicKey := s.strategy.PublicKey(); publicKey != nil {
		jwk, err := convertToJWK(publicKey, s.strategy.KeyID())
		if err != nil {
			s.logger.Error("Failed to convert public key to JWK", zap.Error(err))
			return nil, err
		}
		jwks = append(jwks, jwk)
	}
	keys := map[string]any{"keys": jwks}

	s.cache.mu.Lock()
	s.cache.keys = keys
	s.cache.lastSync = time.Now()
	s.cache.mu.Unlock()

	return keys, nil
}

// RotateKeys rotates the signing key and drops the cached JWKS
func (s *Service) RotateKeys() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.strategy.RotateKey(); err != nil {
		s.logger.Error("Failed to rotate keys", zap.Error(err))
		return err
	}

	s.cache.mu.Lock()
	s.cache.keys = map[string]any{}
	s.cache.lastSync = time.Time{}
	s.cache.mu.Unlock()

	s.logger.Info("JWT keys rotated successfully",
		zap.String("key_id", s.strategy.KeyID()),
		zap.Time("rotation_time", s.strategy.LastRotation()))
	return nil
}

// convertToJWK converts an RSA public key to JWK format
func convertToJWK(publicKey *rsa.PublicKey, kid string) (map[string]any, error) {
	if publicKey == nil {
		return nil, ErrInvalidKeyConfig
	}

	nStr := base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes())

	eBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(eBytes, uint32(publicKey.E))
	eBytes = bytes.TrimLeft(eBytes, "\x00")
	eStr := base64.RawURLEncoding.EncodeToString(eBytes)

	return map[string]any{
		"kty": "RSA",
		"use": "sig",
		"kid": kid,
		"alg": "RS256",
		"n":   nStr,
		"e":   eStr,
	}, nil
}
