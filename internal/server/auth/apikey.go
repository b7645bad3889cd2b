package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// APIKeyPrefix tags every generated key so callers can screen the
	// format before hitting storage.
	APIKeyPrefix = "ws_"
	// apiKeyLength is the number of random bytes per key (256 bits).
	apiKeyLength = 32
)

// GenerateAPIKey creates a new opaque bearer secret.
// Format: ws_<base64url(32 random bytes)>, no padding.
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, apiKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// HashAPIKey computes the hex-encoded SHA-256 digest of key. The digest is
// deterministic so it can serve as an equality-comparable lookup column;
// the plaintext key is never stored.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// VerifyAPIKey recomputes the digest of key and compares it with the stored
// digest in constant time.
func VerifyAPIKey(key, digest string) bool {
	computed := HashAPIKey(key)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// ValidAPIKeyFormat checks that key looks like one of ours: correct prefix
// and a decodable base64url payload.
func ValidAPIKeyFormat(key string) bool {
	if !strings.HasPrefix(key, APIKeyPrefix) {
		return false
	}
	encoded := strings.TrimPrefix(key, APIKeyPrefix)
	if encoded == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(encoded)
	return err == nil
}
