package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of every derived key (what gorilla/csrf expects).
	KeySize = 32

	// MinBytesPerToken is the minimum entropy of a session token.
	MinBytesPerToken = 32
)

var (
	ErrSecretTooShort = errors.New("secret must be at least 32 bytes")
	ErrInvalidToken   = errors.New("invalid session token")
)

// DeriveKey stretches secret into a KeySize key bound to purpose, so one
// configured secret can feed several independent keys.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) < KeySize {
		return nil, ErrSecretTooShort
	}

	r := hkdf.New(sha256.New, secret, nil, []byte("seemenu:"+purpose))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}

// NewToken returns a random URL-safe token with MinBytesPerToken of entropy.
func NewToken() (string, error) {
	b := make([]byte, MinBytesPerToken)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken maps a cookie token to the id used as the store key, so a
// leaked store dump does not reveal live cookies.
func HashToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < MinBytesPerToken {
		return "", ErrInvalidToken
	}
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
