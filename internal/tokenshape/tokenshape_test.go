package tokenshape

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushToken(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[i%len(alphabet)])
	}
	return b.String()
}

func signedSession(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   42,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestShortStringsAreNeverPushTokens(t *testing.T) {
	for _, n := range []int{0, 1, 50, 99, 100} {
		assert.False(t, IsValidPushToken(pushToken(n)), "length %d", n)
	}
	assert.True(t, IsValidPushToken(pushToken(101)))
	assert.True(t, IsValidPushToken(pushToken(163)))
}

func TestPushTokenCharset(t *testing.T) {
	base := pushToken(150)
	for _, bad := range []string{" ", "+", "/", "=", "!", "é"} {
		assert.False(t, IsValidPushToken(base+bad), "suffix %q", bad)
	}
}

func TestSignedSessionTokenIsRejected(t *testing.T) {
	session := signedSession(t)
	assert.True(t, IsSessionToken(session))
	assert.False(t, IsValidPushToken(session))
	assert.Equal(t, KindSessionToken, Classify(session))
}

func TestLongSessionShapedStringIsNotPushToken(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"id":7,"role":"technician","note":"` + strings.Repeat("x", 120) + `"}`))
	session := header + "." + payload + ".c2lnbmF0dXJl"

	require.Greater(t, len(session), MinPushTokenLength)
	assert.True(t, IsSessionToken(session))
	assert.False(t, IsValidPushToken(session))
}

func TestSessionHeaderNeedsTypMarker(t *testing.T) {
	noTyp := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`)) + ".e30.sig"
	assert.False(t, IsSessionToken(noTyp))

	lower := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"jwt"}`)) + ".e30.sig"
	assert.True(t, IsSessionToken(lower))

	assert.False(t, IsSessionToken("not-base64!.b.c"))
	assert.False(t, IsSessionToken("a.b"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindPushToken, Classify(pushToken(140)))
	assert.Equal(t, KindMalformed, Classify("short"))
	assert.Equal(t, KindMalformed, Classify(pushToken(140)+":suffix"))
}
