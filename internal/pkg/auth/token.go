package auth

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// AccessTokenLength is the length of a generated bearer access token value.
// 64 characters over a 64-symbol alphabet gives 384 bits of entropy, well
// beyond guessing or enumeration range.
const AccessTokenLength = 64

// tokenAlphabet is URL-safe so tokens can be embedded in links without escaping.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// GenerateAccessToken returns a new high-entropy bearer token value.
func GenerateAccessToken() (string, error) {
	return randomString(AccessTokenLength)
}

// GenerateGuestCode returns a random identifier assigned to guest participants.
// It is deliberately a different shape than an access token so the two can
// never be confused for one another in logs or links.
func GenerateGuestCode() string {
	return "g-" + uuid.New().String()
}

func randomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}
