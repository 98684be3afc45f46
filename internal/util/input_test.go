package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com \n"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "a***@example.com",
		"a@x.com":           "a***@x.com",
		"not-an-email":      "***",
		"@example.com":      "***",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestContainsSuspicious(t *testing.T) {
	assert.False(t, ContainsSuspicious("alice@example.com"))
	assert.True(t, ContainsSuspicious("alice@example.com\r\nBcc: bob@example.com"))
	assert.True(t, ContainsSuspicious("<script>@example.com"))

	for _, ok := range []string{
		"subscriptions@company.com",
		"description@x.com",
		"ops@transcript.io",
		"jonerror@x.com",
		"x@onload.com",
	} {
		assert.False(t, ContainsSuspicious(NormalizeEmail(ok)), ok)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ADMIN_AUTH_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnv("ADMIN_AUTH_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnv("ADMIN_AUTH_TEST_MISSING", "fallback"))
}
