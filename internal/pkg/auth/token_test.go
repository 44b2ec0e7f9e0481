package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccessToken(t *testing.T) {
	token, err := GenerateAccessToken()
	require.NoError(t, err)

	assert.Len(t, token, AccessTokenLength)
	for _, r := range token {
		assert.True(t, strings.ContainsRune(tokenAlphabet, r), "unexpected character %q", r)
	}
}

func TestGenerateAccessToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateAccessToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestGenerateGuestCode(t *testing.T) {
	code := GenerateGuestCode()
	assert.True(t, strings.HasPrefix(code, "g-"))
	assert.NotEqual(t, code, GenerateGuestCode())
	// A guest code must never look like an access token value.
	assert.NotEqual(t, AccessTokenLength, len(code))
}
