// Package fcm is a minimal Firebase Cloud Messaging HTTP v1 client.
package fcm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/chemtech/maintenance-push/internal/push"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// Scope is the OAuth2 scope required by the send endpoint.
	Scope = "https://www.googleapis.com/auth/firebase.messaging"

	tokenRefreshBuffer = 5 * time.Minute
	maxErrorBody       = 64 << 10
)

var _ push.Provider = (*Client)(nil)

// Config configures a Client.
type Config struct {
	Endpoint    string
	ProjectID   string
	TokenSource oauth2.TokenSource
	Timeout     time.Duration
}

// Client sends messages through the FCM HTTP v1 API.
type Client struct {
	baseURL   *url.URL
	projectID string
	tokens    oauth2.TokenSource
	http      *http.Client
}

// New creates an FCM client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("token source is required")
	}
	rawURL := cfg.Endpoint
	if rawURL == "" {
		rawURL = "https://fcm.googleapis.com"
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("endpoint must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   parsed,
		projectID: cfg.ProjectID,
		tokens:    oauth2.ReuseTokenSourceWithExpiry(nil, cfg.TokenSource, tokenRefreshBuffer),
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// Credentials resolves service-account credentials: inline base64 JSON
// first, then a JSON file, then Application Default Credentials.
// The returned token source keeps ctx values but not its cancellation, so
// refreshes keep working after the caller's ctx ends.
func Credentials(ctx context.Context, credentialsBase64, credentialsFile string) (*google.Credentials, error) {
	ctx = context.WithoutCancel(ctx)
	var raw []byte
	switch {
	case strings.TrimSpace(credentialsBase64) != "":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(credentialsBase64))
		if err != nil {
			return nil, fmt.Errorf("decode base64 credentials: %w", err)
		}
		raw = decoded
	case strings.TrimSpace(credentialsFile) != "":
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading service account file: %w", err)
		}
		raw = data
	default:
		creds, err := google.FindDefaultCredentials(ctx, Scope)
		if err != nil {
			return nil, fmt.Errorf("finding default credentials: %w", err)
		}
		return creds, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, Scope)
	if err != nil {
		return nil, fmt.Errorf("creating credentials from service account: %w", err)
	}
	return creds, nil
}

// Send delivers msg and returns the provider message name.
func (c *Client) Send(ctx context.Context, msg push.Message) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", transportError(err)
		}
		return "", &push.Error{Code: push.CodeAuthentication, Message: "getting access token", Err: err}
	}
	body, err := json.Marshal(sendRequest{Message: message{
		Token:        msg.Token,
		Notification: &notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android:      &androidConfig{Priority: "high"},
	}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(fmt.Sprintf("/v1/projects/%s/messages:send", c.projectID)), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", decodeError(resp.StatusCode, raw)
	}
	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	return out.Name, nil
}

// Ping verifies that an access token can be obtained.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

// accessToken bounds the token fetch by ctx. The token source itself takes
// no context, so an abandoned fetch finishes in the background.
func (c *Client) accessToken(ctx context.Context) (*oauth2.Token, error) {
	type result struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := c.tokens.Token()
		done <- result{token, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.token, r.err
	}
}

func (c *Client) resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, p)
	return u.String()
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &push.Error{Code: push.CodeTimeout, Message: "request timed out", Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &push.Error{Code: push.CodeTimeout, Message: "request timed out", Err: err}
	}
	return &push.Error{Code: push.CodeNetwork, Message: err.Error(), Err: err}
}

func decodeError(status int, raw []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	msg := env.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &push.Error{
		Code:    classify(status, env.Error.Status, env.detailCode(), msg),
		Message: msg,
		Status:  status,
	}
}

// classify maps FCM v1 error details onto provider codes.
func classify(httpStatus int, status, detail, msg string) string {
	switch detail {
	case "UNREGISTERED":
		return push.CodeRegistrationTokenNotRegistered
	case "INVALID_ARGUMENT":
		if strings.Contains(strings.ToLower(msg), "registration token") {
			return push.CodeInvalidRegistrationToken
		}
		return push.CodeInvalidArgument
	case "QUOTA_EXCEEDED":
		return push.CodeMessageRateExceeded
	case "SENDER_ID_MISMATCH":
		return push.CodeMismatchedCredential
	case "THIRD_PARTY_AUTH_ERROR", "APNS_AUTH_ERROR":
		return push.CodeThirdPartyAuth
	case "UNAVAILABLE":
		return push.CodeServerUnavailable
	case "INTERNAL":
		return push.CodeInternal
	}
	switch {
	case status == "NOT_FOUND" || httpStatus == http.StatusNotFound:
		return push.CodeRegistrationTokenNotRegistered
	case status == "UNAUTHENTICATED" || httpStatus == http.StatusUnauthorized:
		return push.CodeAuthentication
	case status == "RESOURCE_EXHAUSTED" || httpStatus == http.StatusTooManyRequests:
		return push.CodeMessageRateExceeded
	case status == "UNAVAILABLE" || httpStatus == http.StatusServiceUnavailable:
		return push.CodeServerUnavailable
	case status == "INVALID_ARGUMENT" || httpStatus == http.StatusBadRequest:
		return push.CodeInvalidArgument
	case httpStatus >= 500:
		return push.CodeInternal
	}
	return push.CodeUnknown
}

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification *notification     `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority string `json:"priority"`
}

type sendResponse struct {
	Name string `json:"name"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func (e errorEnvelope) detailCode() string {
	for _, d := range e.Error.Details {
		if d.ErrorCode != "" {
			return d.ErrorCode
		}
	}
	return ""
}
