package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmail(t *testing.T) {
	tests := map[string]bool{
		"a@b.co":              true,
		"first.last@corp.io":  true,
		"not-an-email":        false,
		"@example.com":        false,
		"user@localhost":      false,
		"user@example..com":   false,
		"a@b@c.com":           false,
		"with space@mail.com": false,
		"":                    false,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsEmail(in), in)
	}
}

func TestIsHostname(t *testing.T) {
	tests := map[string]bool{
		"example.com":  true,
		"api-1.local.": true,
		"-bad.com":     false,
		"bad-.com":     false,
		"under_score":  false,
		"":             false,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsHostname(in), in)
	}
}

func TestDefaultFormats(t *testing.T) {
	formats := DefaultFormats()
	assert.Equal(t, []string{"email", "hostname", "ip", "ipv4", "ipv6", "uri", "uuid"}, formats.Names())

	uuidFn, ok := formats.Lookup(FormatUUID)
	assert.True(t, ok)
	assert.True(t, uuidFn("7c9e6679-7425-40de-944b-e07fc1f90ae7"))
	assert.False(t, uuidFn("7c9e6679742540de944be07fc1f90ae7"))

	ipv4, _ := formats.Lookup(FormatIPv4)
	ipv6, _ := formats.Lookup(FormatIPv6)
	assert.True(t, ipv4("10.0.0.1"))
	assert.False(t, ipv4("::1"))
	assert.True(t, ipv6("::1"))
	assert.False(t, ipv6("10.0.0.1"))
}
