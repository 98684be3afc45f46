package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-auth/internal/service"
)

type stubIssuer struct {
	got service.IssueRequest
	err error
}

func (s *stubIssuer) Issue(ctx context.Context, req service.IssueRequest) (*service.IssueResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.IssueResult{Message: "OTP sent to email"}, nil
}

type stubVerifier struct {
	got service.VerifyRequest
	err error
}

func (s *stubVerifier) Verify(ctx context.Context, req service.VerifyRequest) (*service.VerifyResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.VerifyResult{Token: "signed.jwt.value", ExpiresAt: time.Now().Add(time.Hour), TokenID: "jti-1"}, nil
}

func newTestRouter(issuer OTPIssuer, verifier OTPVerifier) http.Handler {
	return NewRouter(RouterConfig{AllowedOrigins: []string{"*"}},
		NewIssueHandler(issuer).RegisterRoutes,
		NewVerifyHandler(verifier).RegisterRoutes,
	)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestIssue_Success(t *testing.T) {
	issuer := &stubIssuer{}
	rec, body := doJSON(t, newTestRouter(issuer, &stubVerifier{}), http.MethodPost, "/auth/otp", `{"email":"Admin@Example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP sent to email", body["message"])
	assert.Equal(t, "Admin@Example.com", issuer.got.Email)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestIssue_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", fmt.Errorf("%w: email is required", service.ErrValidation), http.StatusBadRequest, "a valid email is required"},
		{"throttled", fmt.Errorf("%w: limit reached", service.ErrThrottled), http.StatusTooManyRequests, msgThrottled},
		{"dispatch", fmt.Errorf("%w: ses: throttling", service.ErrDispatch), http.StatusInternalServerError, msgDispatch},
		{"dependency", fmt.Errorf("%w: put: timeout", service.ErrDependency), http.StatusInternalServerError, msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, newTestRouter(&stubIssuer{err: tt.err}, &stubVerifier{}), http.MethodPost, "/auth/otp", `{"email":"a@b.co"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, body["error"])
			assert.NotContains(t, rec.Body.String(), "timeout")
			assert.NotContains(t, rec.Body.String(), "ses:")
		})
	}
}

func TestIssue_InvalidJSON(t *testing.T) {
	issuer := &stubIssuer{}
	rec, body := doJSON(t, newTestRouter(issuer, &stubVerifier{}), http.MethodPost, "/auth/otp", `{"email":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgBadBody, body["error"])
	assert.Empty(t, issuer.got.Email)
}

func TestIssue_OversizedBody(t *testing.T) {
	payload := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `@example.com"}`
	rec, _ := doJSON(t, newTestRouter(&stubIssuer{}, &stubVerifier{}), http.MethodPost, "/auth/otp", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_Success(t *testing.T) {
	verifier := &stubVerifier{}
	rec, body := doJSON(t, newTestRouter(&stubIssuer{}, verifier), http.MethodPost, "/auth/otp/verify", `{"email":"a@b.co","otp":"123456"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed.jwt.value", body["token"])
	assert.Len(t, body, 1)
	assert.Equal(t, "123456", verifier.got.OTP)
}

func TestVerify_AuthFailuresAreIndistinguishable(t *testing.T) {
	for _, sentinel := range []error{service.ErrNotFound, service.ErrInvalidCredential, service.ErrExpired} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			err := fmt.Errorf("%w: detail", sentinel)
			rec, body := doJSON(t, newTestRouter(&stubIssuer{}, &stubVerifier{err: err}), http.MethodPost, "/auth/otp/verify", `{"email":"a@b.co","otp":"123456"}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, map[string]interface{}{"error": msgAuthFailed}, body)
		})
	}
}

func TestVerify_ValidationError(t *testing.T) {
	err := fmt.Errorf("%w: otp must be 6 digits", service.ErrValidation)
	rec, body := doJSON(t, newTestRouter(&stubIssuer{}, &stubVerifier{err: err}), http.MethodPost, "/auth/otp/verify", `{"email":"a@b.co","otp":"12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email and a 6 digit otp are required", body["error"])
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&stubIssuer{}, &stubVerifier{})

	rec, body := doJSON(t, router, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", body["error"])

	rec, body = doJSON(t, router, http.MethodGet, "/auth/otp", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", body["error"])
}

func TestRouter_Health(t *testing.T) {
	healthy := NewRouter(RouterConfig{})
	rec, body := doJSON(t, healthy, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	failing := NewRouter(RouterConfig{Health: func(ctx context.Context) (bool, map[string]error) {
		return false, map[string]error{"store": fmt.Errorf("connection refused")}
	}})
	rec, body = doJSON(t, failing, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, []interface{}{"store"}, body["failed"])

	degraded := NewRouter(RouterConfig{Health: func(ctx context.Context) (bool, map[string]error) {
		return true, map[string]error{"kafka": fmt.Errorf("no brokers")}
	}})
	rec, body = doJSON(t, degraded, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, []interface{}{"kafka"}, body["failed"])
}

func TestRouter_WildcardOriginWithoutOriginHeader(t *testing.T) {
	router := newTestRouter(&stubIssuer{}, &stubVerifier{})

	for _, path := range []string{"/auth/otp", "/nope"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"email":"a@b.co"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestRouter_CORSRestrictedOrigins(t *testing.T) {
	router := NewRouter(RouterConfig{AllowedOrigins: []string{"https://admin.example.com"}},
		NewIssueHandler(&stubIssuer{}).RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/auth/otp", strings.NewReader(`{"email":"a@b.co"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/auth/otp", strings.NewReader(`{"email":"a@b.co"}`))
	req.Header.Set("Origin", "https://admin.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
