package lnauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// APIKeyIDLen is the length, in bytes, of a generated API key
	// identifier.
	APIKeyIDLen = 8

	// APIKeyLen is the length, in bytes, of a generated API key secret.
	APIKeyLen = 32

	// SecretLen is the length, in bytes, of a generated one-time secret
	// (the k1 token handed out to wallets).
	SecretLen = 32
)

// APIKey is a server-held credential used to authorize signed LNURL creation
// requests. The ID is public and identifies the key, while Key is the shared
// secret used for HMAC signing. An APIKey is immutable once issued.
type APIKey struct {
	// ID identifies the key for lookup. It travels in the clear as the
	// "id" query parameter of signed requests.
	ID string

	// Key is the shared secret used to compute request signatures.
	Key []byte
}

// GenerateAPIKey mints a fresh API key with a random identifier and secret.
func GenerateAPIKey() (*APIKey, error) {
	id := make([]byte, APIKeyIDLen)
	if _, err := io.ReadFull(rand.Reader, id); err != nil {
		return nil, err
	}

	key := make([]byte, APIKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}

	return &APIKey{
		ID:  hex.EncodeToString(id),
		Key: key,
	}, nil
}

// ParseAPIKey parses an API key from its "id:hexkey" string encoding, the
// form accepted by the daemon's --apikey option.
func ParseAPIKey(s string) (*APIKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("malformed api key %q, expected "+
			"id:hexkey", s)
	}

	key, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed api key secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("malformed api key %q, empty secret", s)
	}

	return &APIKey{
		ID:  parts[0],
		Key: key,
	}, nil
}

// String returns the "id:hexkey" encoding of the key.
func (a *APIKey) String() string {
	return fmt.Sprintf("%s:%s", a.ID, hex.EncodeToString(a.Key))
}

// GenerateSecret mints a new random one-time secret token, hex encoded.
func GenerateSecret() (string, error) {
	secret := make([]byte, SecretLen)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", err
	}
	return hex.EncodeToString(secret), nil
}
