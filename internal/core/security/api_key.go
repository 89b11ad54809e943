package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// KeyPrefix marks admin keys issued by receiptctl
const KeyPrefix = "rb_admin_"

// GenerateAPIKey creates a secure random admin key and its SHA256 hash.
//
// Returns:
//   - realKey: the key to hand to the operator (e.g., "rb_admin_abc123...")
//   - keyHash: SHA256 hex to put in ADMIN_API_KEY_HASH
//   - error: any error during random byte generation
func GenerateAPIKey() (string, string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	realKey := KeyPrefix + hex.EncodeToString(bytes)
	return realKey, HashKey(realKey), nil
}

// HashKey returns the hex SHA256 of key, the only form we keep on disk
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ValidateKey checks if a provided API key matches the stored hash.
func ValidateKey(providedKey, storedHash string) bool {
	if providedKey == "" || storedHash == "" {
		return false
	}
	computed := HashKey(providedKey)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
