package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/auth/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

type fakeUsecase struct {
	registerIn usecase.RegisterInput
	loginIn    usecase.LoginInput
	verifyIn   usecase.VerifyOTPInput
	verifyErr  error
	healthErr  error
}

func (f *fakeUsecase) Register(_ context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	f.registerIn = in
	return &usecase.RegisterOutput{Username: in.Username}, nil
}

func (f *fakeUsecase) Login(_ context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error) {
	f.loginIn = in
	return &usecase.LoginOutput{ChallengeToken: in.Username, ExpiresIn: 300 * time.Second}, nil
}

func (f *fakeUsecase) VerifyOTP(_ context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error) {
	f.verifyIn = in
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &usecase.VerifyOTPOutput{Username: in.Username}, nil
}

func (f *fakeUsecase) Health(context.Context) (*usecase.HealthOutput, error) {
	if f.healthErr != nil {
		return &usecase.HealthOutput{Store: "unavailable", Cache: "ok"}, f.healthErr
	}
	return &usecase.HealthOutput{Store: "ok", Cache: "ok"}, nil
}

func newServer(uc *fakeUsecase) *router.Router {
	r := router.NewRouter(router.Config{UUID: uid.NewUUID(), Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, uc)
	return r
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h http.Handler, method, path, contentType, body string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestRegisterEndpoint(t *testing.T) {
	uc := &fakeUsecase{}
	h := newServer(uc)

	for _, path := range []string{"/register_user", "/api/v1/auth/register"} {
		status, env := serve(t, h, http.MethodPost, path, "application/json",
			`{"username":"alice","password":"s3cret-pass","email":"alice@example.com"}`)

		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "Registration successful", env.Message)
		assert.Equal(t, usecase.RegisterInput{Username: "alice", Password: "s3cret-pass", Email: "alice@example.com"}, uc.registerIn)
	}
}

func TestLoginEndpointForm(t *testing.T) {
	uc := &fakeUsecase{}
	h := newServer(uc)

	form := url.Values{"username": {"alice"}, "password": {"s3cret-pass"}}.Encode()
	status, env := serve(t, h, http.MethodPost, "/login", "application/x-www-form-urlencoded", form)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP has been sent to your email", env.Message)
	assert.Equal(t, usecase.LoginInput{Username: "alice", Password: "s3cret-pass"}, uc.loginIn)

	var data LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, LoginResponse{ChallengeToken: "alice", ExpiresInSeconds: 300}, data)
}

func TestVerifyOTPEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		uc := &fakeUsecase{}
		status, env := serve(t, newServer(uc), http.MethodPost, "/verify_otp", "application/json", `{"username":"alice","otp":"123456"}`)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "OTP verified successfully!", env.Message)
		assert.Equal(t, "123456", uc.verifyIn.OTP)
	})

	t.Run("business error", func(t *testing.T) {
		uc := &fakeUsecase{verifyErr: goerror.NewBusinessErr(entity.ErrInvalidOTP, "Invalid OTP", goerror.CodeBadRequest)}
		status, env := serve(t, newServer(uc), http.MethodPost, "/api/v1/auth/verify-otp", "application/json", `{"username":"alice","otp":"000000"}`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid OTP", env.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		status, env := serve(t, newServer(&fakeUsecase{}), http.MethodPost, "/verify_otp", "application/json", `{"username":`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid request body", env.Message)
	})
}

func TestHealthEndpoint(t *testing.T) {
	status, env := serve(t, newServer(&fakeUsecase{}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"store":"ok","cache":"ok"}`, string(env.Data))

	uc := &fakeUsecase{healthErr: goerror.NewBusiness("Service unavailable", goerror.CodeUnavailable)}
	status, env = serve(t, newServer(uc), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "Service unavailable", env.Message)
}
