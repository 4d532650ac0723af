// Package tokenshape classifies opaque strings submitted as device tokens.
//
// Clients occasionally send their session JWT where a push registration
// token is expected; these helpers let callers reject that with a clear
// message instead of storing an unusable token.
package tokenshape

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// MinPushTokenLength is exclusive: a push token must be longer than this.
const MinPushTokenLength = 100

// Kind is the classification of a candidate token.
type Kind string

const (
	KindSessionToken Kind = "session_token"
	KindPushToken    Kind = "push_token"
	KindMalformed    Kind = "malformed"
)

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Classify returns the kind of s.
func Classify(s string) Kind {
	switch {
	case IsSessionToken(s):
		return KindSessionToken
	case hasPushShape(s):
		return KindPushToken
	default:
		return KindMalformed
	}
}

// IsSessionToken reports whether s has three dot-separated segments and its
// first segment decodes to a JSON header with typ "JWT".
func IsSessionToken(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || parts[0] == "" {
		return false
	}
	raw, err := segmentParser.DecodeSegment(parts[0])
	if err != nil {
		return false
	}
	var header map[string]any
	if err := json.Unmarshal(raw, &header); err != nil {
		return false
	}
	typ, _ := header["typ"].(string)
	return strings.EqualFold(typ, "JWT")
}

// IsValidPushToken reports whether s looks like a push registration token.
func IsValidPushToken(s string) bool {
	return hasPushShape(s) && !IsSessionToken(s)
}

func hasPushShape(s string) bool {
	if len(s) <= MinPushTokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenByte(s[i]) {
			return false
		}
	}
	return true
}

func isTokenByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
