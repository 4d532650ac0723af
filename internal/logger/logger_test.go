package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsMasksCredentials(t *testing.T) {
	pushToken := strings.Repeat("a", 140)
	out := sanitizeKVs([]interface{}{
		"token", pushToken,
		"password", "hunter2",
		"x-api-key", "k",
		"path", "/api/health",
		"dangling",
	})

	assert.Equal(t, "token", out[0])
	assert.Equal(t, "aaaaaaaa...(140)", out[1])
	assert.Equal(t, "[REDACTED]", out[3])
	assert.Equal(t, "[REDACTED]", out[5])
	assert.Equal(t, "/api/health", out[7])
	assert.Equal(t, "dangling", out[8])
}

func TestSanitizeValueRedactsJWTShapedStrings(t *testing.T) {
	jwtish := "eyJhbGciOiJIUzI1NiJ9.eyJpZCI6MSwicm9sZSI6ImFkbWluIn0.sig"
	assert.Equal(t, "[REDACTED]", sanitizeValue("detail", jwtish))
	assert.Equal(t, "plain", sanitizeValue("detail", "plain"))
}

func TestMaskShortValues(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abcd"))
}
