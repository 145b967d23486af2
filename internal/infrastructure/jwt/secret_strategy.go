package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// MinSecretLength is the minimum HS256 secret size in bytes
const MinSecretLength = 32

// secretStrategy signs with a shared HMAC secret
type secretStrategy struct {
	secret       []byte
	keyID        string
	lastRotation time.Time
	logger       *zap.Logger
	mu           sync.RWMutex
}

// NewSecretStrategy creates an HS256 strategy
func NewSecretStrategy(secret []byte, logger *zap.Logger) (Strategy, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrInvalidKeyConfig, MinSecretLength)
	}
	s := &secretStrategy{
		secret:       append([]byte(nil), secret...),
		lastRotation: time.Now(),
		logger:       logger,
	}
	s.keyID = secretKeyID(s.secret)
	return s, nil
}

func secretKeyID(secret []byte) string {
	hash := sha256.Sum256(secret)
	return base64.RawURLEncoding.EncodeToString(hash[:8])
}

func (s *secretStrategy) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

func (s *secretStrategy) SigningKey() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

func (s *secretStrategy) VerificationKey(kid string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if kid != "" && kid != s.keyID {
		return nil, ErrUnknownKeyID
	}
	return s.secret, nil
}

func (s *secretStrategy) KeyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyID
}

func (s *secretStrategy) PublicKey() *rsa.PublicKey {
	return nil
}

// RotateKey replaces the secret with random bytes. Tokens signed before rotation stop verifying.
func (s *secretStrategy) RotateKey() error {
	secret := make([]byte, MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyConfig, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
	s.keyID = secretKeyID(secret)
	s.lastRotation = time.Now()
	s.logger.Warn("HMAC secret rotated; previously issued tokens are invalid")
	return nil
}

func (s *secretStrategy) LastRotation() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRotation
}
