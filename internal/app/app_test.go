package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const testConfig = `
app:
  node_id: 1
  server:
    max_goroutine: 10
    http:
      address: ":0"
database:
  driver: memory
cache:
  driver: memory
messaging:
  driver: memory
mail:
  driver: log
  from: no-reply@otpgate.local
hash:
  hmac:
    secret: test-hmac-secret
  password:
    algorithm: bcrypt
    pepper: test-pepper
  bcrypt:
    cost: 4
mfa:
  secret: MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=
  totp:
    issuer: otpgate
    period: 30
    skew: 0
instrument:
  enabled: false
  service_name: otpgate-test
modules:
  auth:
    enabled: true
    otp_ttl_seconds: 300
  notification:
    enabled: true
    consumer_names: otp_issued_notification
`

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   map[string]string `json:"error"`
}

func newTestApp(t *testing.T, yaml string) *App {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	a, err := NewWithConfig(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})

	return a
}

func postJSON(t *testing.T, url string, body any) (int, envelope) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	return resp.StatusCode, env
}

func TestApp_RegisterLoginVerify(t *testing.T) {
	a := newTestApp(t, testConfig)

	broker, ok := a.messaging.(*messaging.Memory)
	require.True(t, ok)

	issued := make(chan event.OTPIssuedMessage, 4)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = broker.Consume(ctx, event.OTPIssuedDestination, func(_ context.Context, msg messaging.Message) error {
			var m event.OTPIssuedMessage
			if err := json.Unmarshal(msg.Body(), &m); err != nil {
				return err
			}
			issued <- m
			return nil
		}, messaging.WithGroup("e2e"), messaging.WithAutoAck(true))
	}()

	// notification consumer plus the capture above
	require.Eventually(t, func() bool {
		return broker.Subscribers(event.OTPIssuedDestination) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(a.httpServer.Handler)
	t.Cleanup(srv.Close)

	status, env := postJSON(t, srv.URL+"/register_user", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Registration successful", env.Message)

	status, env = postJSON(t, srv.URL+"/register_user", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username already taken", env.Message)

	status, env = postJSON(t, srv.URL+"/login", map[string]string{
		"username": "alice",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	status, env = postJSON(t, srv.URL+"/login", map[string]string{
		"username": "alice",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP has been sent to your email", env.Message)

	var msg event.OTPIssuedMessage
	select {
	case msg = <-issued:
	case <-time.After(2 * time.Second):
		t.Fatal("otp_issued event was not published")
	}
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "alice@example.com", msg.Email)
	assert.Len(t, msg.Code, 6)
	assert.Equal(t, int64(300), msg.ExpiresInSeconds)

	status, env = postJSON(t, srv.URL+"/verify_otp", map[string]string{
		"username": "alice",
		"otp":      "not-it",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid OTP", env.Message)

	status, env = postJSON(t, srv.URL+"/verify_otp", map[string]string{
		"username": "alice",
		"otp":      msg.Code,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP verified successfully!", env.Message)

	status, env = postJSON(t, srv.URL+"/verify_otp", map[string]string{
		"username": "alice",
		"otp":      msg.Code,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP session expired", env.Message)
}

func TestApp_Health(t *testing.T) {
	a := newTestApp(t, testConfig)

	srv := httptest.NewServer(a.httpServer.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewWithConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown database driver",
			yaml: "database:\n  driver: oracle\nmfa:\n  secret: MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=\n",
		},
		{
			name: "mfa secret is not 32 bytes",
			yaml: "mfa:\n  secret: c2hvcnQ=\n",
		},
		{
			name: "unknown messaging driver",
			yaml: "messaging:\n  driver: carrier-pigeon\nmfa:\n  secret: MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=\nmail:\n  driver: log\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.NewViperFromBytes("yaml", []byte(tt.yaml))
			require.NoError(t, err)

			a, err := NewWithConfig(cfg)
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}
