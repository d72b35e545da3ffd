package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/fineahban/marketplace/internal/auth"
	"github.com/fineahban/marketplace/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             8080,
		DBDriver:         "sqlite",
		DBDSN:            ":memory:",
		DBQueryTimeout:   5 * time.Second,
		JWTSecret:        "server-test-secret-0123",
		TokenTTL:         time.Hour,
		LoginRedirectURL: "/",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func socialLogin(t *testing.T, ts *httptest.Server, socialID, email string) *http.Cookie {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/social-login", map[string]any{
		"email": email, "socialId": socialID, "provider": "google",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == auth.TokenCookie {
			return c
		}
	}
	t.Fatal("social login set no token cookie")
	return nil
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// A message sent over HTTP reaches the recipient's open WebSocket.
func TestMessageFanOut(t *testing.T) {
	s, ts := newTestServer(t, testConfig())

	socialLogin(t, ts, "A", "a@example.com") // id 1
	bobCookie := socialLogin(t, ts, "B", "b@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Cookie", auth.TokenCookie+"="+bobCookie.Value)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: header,
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	// The hub registers the client just after the handshake completes.
	require.Eventually(t, func() bool { return s.hub.ConnectedCount(2) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, ts.URL+"/api/messages", map[string]any{
		"senderId": 1, "recipientId": 2, "body": "hello bob",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ev struct {
		Type string `json:"type"`
		Data struct {
			SenderID    int64  `json:"sender_id"`
			RecipientID int64  `json:"recipient_id"`
			Body        string `json:"body"`
		} `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &ev))

	assert.Equal(t, "message:new", ev.Type)
	assert.Equal(t, int64(1), ev.Data.SenderID)
	assert.Equal(t, int64(2), ev.Data.RecipientID)
	assert.Equal(t, "hello bob", ev.Data.Body)
}

func TestWebSocketRequiresToken(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestOptionalRoutes(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, ts := newTestServer(t, testConfig())

		resp, err := http.Get(ts.URL + "/auth/google/login")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = postJSON(t, ts.URL+"/api/posts/image-upload-url", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Google = config.OAuthClient{ClientID: "id", ClientSecret: "secret", CallbackURL: "http://localhost/cb"}
		cfg.S3 = config.S3{Bucket: "images", Region: "us-east-1", Endpoint: "http://127.0.0.1:9000", AccessKey: "k", SecretKey: "s"}
		_, ts := newTestServer(t, cfg)

		client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := client.Get(ts.URL + "/auth/google/login")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Location"), "accounts.google.com")

		// Upload URLs need a session.
		resp = postJSON(t, ts.URL+"/api/posts/image-upload-url", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		cookie := socialLogin(t, ts, "A", "a@example.com")
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/posts/image-upload-url", nil)
		require.NoError(t, err)
		req.AddCookie(cookie)
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var up struct {
			Key string `json:"key"`
			URL string `json:"url"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
		assert.True(t, strings.HasPrefix(up.Key, "posts/"))
		assert.Contains(t, up.URL, "X-Amz-Signature")
	})
}
