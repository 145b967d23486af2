package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// localStrategy signs with an RSA key pair kept on disk.
// After a rotation the previous key still verifies tokens carrying its kid.
type localStrategy struct {
	keyPath      string
	privateKey   *rsa.PrivateKey
	previous     *rsa.PrivateKey
	previousKID  string
	logger       *zap.Logger
	keyID        string
	lastRotation time.Time
	mu           sync.RWMutex
}

// NewLocalStrategy loads the PEM key at keyPath, generating one if it does not exist
func NewLocalStrategy(keyPath string, logger *zap.Logger) (Strategy, error) {
	if keyPath == "" {
		return nil, ErrInvalidKeyConfig
	}

	strategy := &localStrategy{
		keyPath:      keyPath,
		logger:       logger,
		lastRotation: time.Now(),
	}

	if err := strategy.loadOrGenerateKeyPair(); err != nil {
		return nil, err
	}
	strategy.keyID = generateKeyID(strategy.privateKey)

	return strategy, nil
}

func (l *localStrategy) loadOrGenerateKeyPair() error {
	dir := filepath.Dir(l.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: create key dir: %v", ErrInvalidKeyConfig, err)
	}

	if err := l.loadKeyPair(); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		l.logger.Warn("Existing signing key unreadable, generating a new one",
			zap.String("key_path", l.keyPath),
			zap.Error(err))
	}

	key, err := l.generateKeyPair()
	if err != nil {
		return err
	}
	l.privateKey = key
	l.logger.Info("Generated new signing key", zap.String("key_path", l.keyPath))
	return nil
}

func (l *localStrategy) loadKeyPair() error {
	privateKeyPEM, err := os.ReadFile(l.keyPath)
	if err != nil {
		return err
	}

	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return fmt.Errorf("%w: no PEM block", ErrInvalidKeyConfig)
	}

	var privateKey *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		privateKey, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var parsed any
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			if privateKey, ok = parsed.(*rsa.PrivateKey); !ok {
				err = fmt.Errorf("%w: not an RSA key", ErrInvalidKeyConfig)
			}
		}
	default:
		err = fmt.Errorf("%w: unsupported PEM type %q", ErrInvalidKeyConfig, block.Type)
	}
	if err != nil {
		return err
	}

	l.privateKey = privateKey
	return nil
}

func (l *localStrategy) generateKeyPair() (*rsa.PrivateKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", ErrInvalidKeyConfig, err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	if err := os.WriteFile(l.keyPath, privateKeyPEM, 0600); err != nil {
		return nil, fmt.Errorf("%w: write key: %v", ErrInvalidKeyConfig, err)
	}
	return privateKey, nil
}

func (l *localStrategy) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

func (l *localStrategy) SigningKey() any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.privateKey
}

func (l *localStrategy) VerificationKey(kid string) (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case kid == "" || kid == l.keyID:
		return &l.privateKey.PublicKey, nil
	case l.previous != nil && kid == l.previousKID:
		return &l.previous.PublicKey, nil
	default:
		return nil, ErrUnknownKeyID
	}
}

func (l *localStrategy) PublicKey() *rsa.PublicKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &l.privateKey.PublicKey
}

func (l *localStrategy) KeyID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keyID
}

// RotateKey generates and persists a new key pair, keeping the old one for verification
func (l *localStrategy) RotateKey() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, err := l.generateKeyPair()
	if err != nil {
		return err
	}

	l.previous, l.previousKID = l.privateKey, l.keyID
	l.privateKey = key
	l.keyID = generateKeyID(key)
	l.lastRotation = time.Now()
	return nil
}

func (l *localStrategy) LastRotation() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRotation
}

// generateKeyID derives a stable key ID from the public key
func generateKeyID(key *rsa.PrivateKey) string {
	data := append(key.N.Bytes(), byte(key.E))
	hash := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
