package fcm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chemtech/maintenance-push/internal/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		Endpoint:    srv.URL,
		ProjectID:   "maintenance-app",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-123"}),
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestSendSuccess(t *testing.T) {
	var got sendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/maintenance-app/messages:send", r.URL.Path)
		assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name":"projects/maintenance-app/messages/0:1"}`))
	})

	name, err := c.Send(context.Background(), push.Message{
		Token: "device-token",
		Title: "t",
		Body:  "b",
		Data:  map[string]string{"type": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/maintenance-app/messages/0:1", name)
	assert.Equal(t, "device-token", got.Message.Token)
	assert.Equal(t, "test", got.Message.Data["type"])
	assert.Equal(t, "high", got.Message.Android.Priority)
}

func TestSendClassifiesErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		code      string
		permanent bool
	}{
		{
			name:      "unregistered",
			status:    http.StatusNotFound,
			body:      `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`,
			code:      push.CodeRegistrationTokenNotRegistered,
			permanent: true,
		},
		{
			name:      "bad token",
			status:    http.StatusBadRequest,
			body:      `{"error":{"code":400,"message":"The registration token is not a valid FCM registration token","status":"INVALID_ARGUMENT","details":[{"errorCode":"INVALID_ARGUMENT"}]}}`,
			code:      push.CodeInvalidRegistrationToken,
			permanent: true,
		},
		{
			name:   "bad payload",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"Invalid value at 'message.data'","status":"INVALID_ARGUMENT","details":[{"errorCode":"INVALID_ARGUMENT"}]}}`,
			code:   push.CodeInvalidArgument,
		},
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","details":[{"errorCode":"QUOTA_EXCEEDED"}]}}`,
			code:   push.CodeMessageRateExceeded,
		},
		{
			name:   "unavailable without body",
			status: http.StatusServiceUnavailable,
			body:   `upstream down`,
			code:   push.CodeServerUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Send(context.Background(), push.Message{Token: "x"})
			require.Error(t, err)
			assert.Equal(t, tc.code, push.CodeOf(err))
			assert.Equal(t, tc.permanent, push.IsPermanent(err))
		})
	}
}

func TestSendHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, push.Message{Token: "x"})
	require.Error(t, err)
	assert.Equal(t, push.CodeTimeout, push.CodeOf(err))
	assert.False(t, push.IsPermanent(err))
}

// stalledTokenSource blocks until release is closed.
type stalledTokenSource struct {
	release chan struct{}
}

func (s stalledTokenSource) Token() (*oauth2.Token, error) {
	<-s.release
	return &oauth2.Token{AccessToken: "late"}, nil
}

func TestSendBoundsAccessTokenFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	t.Cleanup(srv.Close)
	release := make(chan struct{})
	defer close(release)
	c, err := New(Config{
		Endpoint:    srv.URL,
		ProjectID:   "maintenance-app",
		TokenSource: stalledTokenSource{release: release},
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Send(ctx, push.Message{Token: "x"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, push.CodeTimeout, push.CodeOf(err))
	assert.False(t, push.IsPermanent(err))
	assert.Zero(t, hits.Load())

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer pingCancel()
	assert.ErrorIs(t, c.Ping(pingCtx), context.DeadlineExceeded)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{})})
	assert.Error(t, err)
	_, err = New(Config{ProjectID: "p"})
	assert.Error(t, err)
	_, err = New(Config{ProjectID: "p", Endpoint: "fcm.local", TokenSource: oauth2.StaticTokenSource(&oauth2.Token{})})
	assert.Error(t, err)
}

func TestCredentialsRejectsBadBase64(t *testing.T) {
	_, err := Credentials(context.Background(), "!!not base64!!", "")
	assert.Error(t, err)

	_, err = Credentials(context.Background(), base64.StdEncoding.EncodeToString([]byte(`{"type":"nonsense"}`)), "")
	assert.Error(t, err)
}

// tokenEndpoint answers token refreshes, failing like a real transport when
// the request context is already done.
type tokenEndpoint struct {
	calls atomic.Int32
}

func (e *tokenEndpoint) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)),
		Request:    req,
	}, nil
}

func TestCredentialsOutliveCallerContext(t *testing.T) {
	endpoint := &tokenEndpoint{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: endpoint}))
	raw := `{"type":"authorized_user","client_id":"cid","client_secret":"secret","refresh_token":"refresh"}`

	creds, err := Credentials(ctx, base64.StdEncoding.EncodeToString([]byte(raw)), "")
	require.NoError(t, err)
	cancel()

	token, err := creds.TokenSource.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.EqualValues(t, 1, endpoint.calls.Load())
}
