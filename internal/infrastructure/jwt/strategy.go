package jwt

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidKeyConfig     = errors.New("invalid key configuration")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
	ErrUnknownKeyID         = errors.New("unknown key id")
)

// RSAKeySize is the modulus size of generated signing keys
const RSAKeySize = 2048

// Strategy supplies the signing material for a Service
type Strategy interface {
	// SigningMethod returns the JWS algorithm used to sign
	SigningMethod() jwt.SigningMethod
	// SigningKey returns the key handed to jwt.Token.SignedString
	SigningKey() any
	// VerificationKey returns the key for kid; an empty kid selects the current key
	VerificationKey(kid string) (any, error)
	// KeyID returns the current key ID
	KeyID() string
	// PublicKey returns the RSA public key, nil for symmetric strategies
	PublicKey() *rsa.PublicKey
	// RotateKey replaces the signing key
	RotateKey() error
	// LastRotation returns the last key rotation time
	LastRotation() time.Time
}
