package application

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"regexp"

	"github.com/manorfm/oauth2server/internal/domain"
)

// RFC 7636 §4.1 and §4.2 character set and length
var pkcePattern = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

// codeChallengeVerifier checks a code_verifier against a stored challenge
type codeChallengeVerifier interface {
	Method() string
	Verify(verifier, challenge string) bool
}

type plainVerifier struct{}

func (plainVerifier) Method() string { return domain.CodeChallengeMethodPlain }

func (plainVerifier) Verify(verifier, challenge string) bool {
	return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
}

type s256Verifier struct{}

func (s256Verifier) Method() string { return domain.CodeChallengeMethodS256 }

func (s256Verifier) Verify(verifier, challenge string) bool {
	sum := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

var codeChallengeVerifiers = map[string]codeChallengeVerifier{
	domain.CodeChallengeMethodPlain: plainVerifier{},
	domain.CodeChallengeMethodS256:  s256Verifier{},
}

// S256Challenge derives the S256 challenge for a verifier
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func isValidPKCEString(s string) bool {
	return pkcePattern.MatchString(s)
}
