package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type staticID string

func (s staticID) Generate() string { return string(s) }

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type created struct {
	Username string `json:"username"`
}

func (created) Message() string { return "User registered" }
func (created) StatusCode() int { return http.StatusCreated }

func newTestRouter(t *testing.T, cfg config.Config) *Router {
	t.Helper()
	return NewRouter(Config{Config: cfg, UUID: staticID("cid-1"), Instrument: instrument.NewNoop()})
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_DecodeJSONAndForm(t *testing.T) {
	r := newTestRouter(t, nil)
	r.POST("/login", func(req *Request) (any, error) {
		var in loginBody
		if err := req.Decode(&in); err != nil {
			return nil, err
		}
		return in, nil
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json", "application/json", `{"username":"alice","password":"secret123"}`, http.StatusOK},
		{"form", "application/x-www-form-urlencoded", url.Values{"username": {"alice"}, "password": {"secret123"}}.Encode(), http.StatusOK},
		{"unknown json field", "application/json", `{"username":"alice","role":"admin"}`, http.StatusBadRequest},
		{"trailing data", "application/json", `{"username":"alice"}{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, "Invalid request body", decodeResponse(t, rec)["message"])
				return
			}
			data, ok := decodeResponse(t, rec)["data"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "alice", data["username"])
			assert.Equal(t, "secret123", data["password"])
		})
	}
}

func TestRouter_ResponseCodecs(t *testing.T) {
	r := newTestRouter(t, nil)
	r.POST("/created", func(*Request) (any, error) { return created{Username: "alice"}, nil })
	r.GET("/business", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("Invalid credentials", goerror.CodeUnauthorized)
	})
	r.GET("/validation", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(validator.V10ValidationError{"email": "email must be a valid email address"})
	})
	r.GET("/plain", func(*Request) (any, error) { return nil, errors.New("boom") })
	r.GET("/panic", func(*Request) (any, error) { panic("kaboom") })

	tests := []struct {
		method, path string
		wantStatus   int
		wantMessage  string
	}{
		{http.MethodPost, "/created", http.StatusCreated, "User registered"},
		{http.MethodGet, "/business", http.StatusUnauthorized, "Invalid credentials"},
		{http.MethodGet, "/validation", http.StatusUnprocessableEntity, "Validation error"},
		{http.MethodGet, "/plain", http.StatusInternalServerError, "Internal server error"},
		{http.MethodGet, "/panic", http.StatusInternalServerError, "Internal server error"},
		{http.MethodGet, "/missing", http.StatusNotFound, "endpoint not found"},
		{http.MethodDelete, "/created", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/", http.StatusOK, "Welcome to otpgate"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeResponse(t, rec)["message"])
		})
	}

	t.Run("validation fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/validation", http.NoBody))

		fields, ok := decodeResponse(t, rec)["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "email must be a valid email address", fields["email"])
	})
}

func TestRouter_CorrelationID(t *testing.T) {
	r := newTestRouter(t, nil)
	var seen string
	r.GET("/cid", func(req *Request) (any, error) {
		seen = instrument.GetCorrelationID(req.Context())
		return map[string]string{}, nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cid", http.NoBody))
	assert.Equal(t, "cid-1", seen)
	assert.Equal(t, "cid-1", rec.Header().Get(HeaderCorrelationID))

	req := httptest.NewRequest(http.MethodGet, "/cid", http.NoBody)
	req.Header.Set(HeaderRequestID, " upstream-7 ")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-7", seen)
}

func TestRouter_Maintenance(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: \"/login\"\n"))
	require.NoError(t, err)

	r := newTestRouter(t, cfg)
	r.POST("/login", func(*Request) (any, error) { return map[string]string{}, nil })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service is under maintenance", decodeResponse(t, rec)["message"])
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
		wantOK  bool
	}{
		{name: "remote addr", remote: "10.0.0.1:5000", want: "10.0.0.1", wantOK: true},
		{name: "forwarded for first hop", headers: map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.2"}, remote: "10.0.0.1:5000", want: "203.0.113.7", wantOK: true},
		{name: "true client ip wins", headers: map[string]string{"True-Client-IP": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:5000", want: "198.51.100.1", wantOK: true},
		{name: "invalid header falls through", headers: map[string]string{"X-Real-IP": "nope"}, remote: "[::1]:80", want: "::1", wantOK: true},
		{name: "mapped v4", remote: "[::ffff:192.0.2.1]:80", want: "192.0.2.1", wantOK: true},
		{name: "garbage", remote: "garbage", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			ip, ok := clientIP(req)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, ip.String())
			}
		})
	}
}

func TestRouter_ServerErrorCarriesCorrelationID(t *testing.T) {
	r := newTestRouter(t, nil)
	r.GET("/plain", func(*Request) (any, error) { return nil, errors.New("boom") })
	r.GET("/business", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("Invalid OTP", goerror.CodeBadRequest)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "cid-1", decodeResponse(t, rec)["correlation_id"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/business", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, decodeResponse(t, rec), "correlation_id")
}

func TestRouter_MaintenanceWildcard(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: \"*\"\n"))
	require.NoError(t, err)

	r := newTestRouter(t, cfg)
	r.POST("/verify_otp", func(*Request) (any, error) { return map[string]string{}, nil })
	r.GET("/health", func(*Request) (any, error) { return map[string]string{}, nil })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verify_otp", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNormalizeCID(t *testing.T) {
	assert.Equal(t, "abc-1", normalizeCID("  abc-1 "))
	assert.Empty(t, normalizeCID("bad\r\nheader"))
	assert.Empty(t, normalizeCID("has space"))
	assert.Empty(t, normalizeCID("é"))
	assert.Len(t, normalizeCID(strings.Repeat("a", 300)), maxCorrelationIDLen)
}
