package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ada@Example.COM", "ada@example.com"},
		{"  ada@example.com  ", "ada@example.com"},
		{"ada@example.com", "ada@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeEmail(tt.input), "input %q", tt.input)
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"ada@example.com",
		"ada.lovelace@example.co.uk",
		"ada+survey@example.com",
		"a_b%c@sub.example.io",
	}
	for _, email := range valid {
		assert.True(t, IsValidEmail(email), "expected %q to be valid", email)
	}

	invalid := []string{
		"",
		"not-an-email",
		"missing@tld",
		"@example.com",
		"ada@.com",
		"ada@example.",
	}
	for _, email := range invalid {
		assert.False(t, IsValidEmail(email), "expected %q to be invalid", email)
	}
}
