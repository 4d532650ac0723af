// Package push defines the delivery contract the dispatcher relies on.
package push

import (
	"context"
	"errors"
	"fmt"
)

// Provider delivers one message to one registration token.
type Provider interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Message is addressed to a single token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Provider error codes, named after the Firebase Admin SDK codes clients
// already know from the mobile apps.
const (
	CodeInvalidRegistrationToken       = "messaging/invalid-registration-token"
	CodeRegistrationTokenNotRegistered = "messaging/registration-token-not-registered"
	CodeInvalidArgument                = "messaging/invalid-argument"
	CodeMessageRateExceeded            = "messaging/message-rate-exceeded"
	CodeMismatchedCredential           = "messaging/mismatched-credential"
	CodeThirdPartyAuth                 = "messaging/third-party-auth-error"
	CodeServerUnavailable              = "messaging/server-unavailable"
	CodeInternal                       = "messaging/internal-error"
	CodeAuthentication                 = "messaging/authentication-error"
	CodeTimeout                        = "messaging/timeout"
	CodeNetwork                        = "app/network-error"
	CodeUnknown                        = "messaging/unknown-error"
)

// Error is a coded delivery failure.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Permanent reports whether the token will never accept messages again.
func (e *Error) Permanent() bool {
	return e.Code == CodeInvalidRegistrationToken || e.Code == CodeRegistrationTokenNotRegistered
}

// IsPermanent reports whether err carries a permanent token failure.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Permanent()
}

// CodeOf returns the provider code of err, or CodeUnknown.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnknown
}

// Disabled stands in when no credentials are configured. Every send fails
// with a non-permanent error so stored tokens are kept.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) (string, error) {
	return "", &Error{Code: CodeAuthentication, Message: "push provider not configured"}
}
