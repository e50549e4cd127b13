package auth

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smartgarden-cloud/internal/apperr"
)

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/thresholds/G1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_UserForbiddenThresholdUpsert(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "user")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/thresholds/G1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_UserMayStartPump(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "user")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	var gotRole Role
	var gotSubject string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = RoleFromContext(r.Context())
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gardens/G1/pump/start", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotRole != RoleUser || gotSubject != "user-1" {
		t.Fatalf("unexpected identity: role=%s subject=%s", gotRole, gotSubject)
	}
}

func TestAuthMiddleware_DevicePathsSkipJWT(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{
		"/api/v1/devices/D1/data",
		"/api/v1/devices/D1/commands",
		"/api/v1/devices/D1/commands/cmd-1/ack",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestPolicy_RequiredRole(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	cases := []struct {
		method string
		path   string
		role   Role
		ok     bool
	}{
		{http.MethodPut, "/api/v1/thresholds/G1", RoleAdmin, true},
		{http.MethodGet, "/api/v1/thresholds/G1/SOIL_MOISTURE", RoleUser, true},
		{http.MethodPost, "/api/v1/gardens", RoleAdmin, true},
		{http.MethodPost, "/api/v1/gardens/G1/pump/stop", RoleUser, true},
		{http.MethodGet, "/api/v1/gardens/G1/sensor-data", RoleUser, true},
		{http.MethodPost, "/api/v1/devices", RoleAdmin, true},
		{http.MethodPost, "/api/v1/devices/D1/disable", RoleAdmin, true},
		{http.MethodGet, "/api/v1/pump/logs", RoleAdmin, true},
		{http.MethodGet, "/api/v1/devices/D1/commands", "", false},
		{http.MethodGet, "/metrics", "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		role, ok := policy.RequiredRole(req)
		if role != tc.role || ok != tc.ok {
			t.Fatalf("%s %s: expected (%s,%v), got (%s,%v)", tc.method, tc.path, tc.role, tc.ok, role, ok)
		}
	}
	if !policy.IsExempt(httptest.NewRequest(http.MethodGet, "/healthz", nil)) {
		t.Fatalf("expected /healthz exempt")
	}
}

type stubVerifier struct {
	keys map[string]string
}

func (s stubVerifier) VerifyDeviceKey(_ context.Context, deviceID, key string) error {
	if expected, ok := s.keys[deviceID]; ok && expected == key {
		return nil
	}
	return apperr.ErrUnauthorized
}

func TestDeviceKeyMiddleware(t *testing.T) {
	mw, err := NewDeviceKeyMiddleware(stubVerifier{keys: map[string]string{"D1": "secret"}}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	var gotDevice string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDevice = DeviceIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		path   string
		key    string
		status int
	}{
		{"/api/v1/devices/D1/data", "secret", http.StatusOK},
		{"/api/v1/devices/D1/data", "", http.StatusUnauthorized},
		{"/api/v1/devices/D1/commands/cmd-1/ack", "wrong", http.StatusUnauthorized},
		{"/api/v1/devices/D2/commands", "secret", http.StatusUnauthorized},
		{"/api/v1/devices/D1/enable", "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, nil)
		if tc.key != "" {
			req.Header.Set(DeviceKeyHeader, tc.key)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.status {
			t.Fatalf("%s key=%q: expected %d, got %d", tc.path, tc.key, tc.status, resp.Code)
		}
	}
	if gotDevice != "" {
		t.Fatalf("expected last passthrough request without device identity, got %q", gotDevice)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:5555"
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Fatalf("expected remote host, got %s", got)
	}
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := ClientIP(req); got != "1.2.3.4" {
		t.Fatalf("expected forwarded ip, got %s", got)
	}
}

func mustToken(t *testing.T, secret []byte, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestIssueTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "alice", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := ParseJWT(token, []byte("other-secret")); err == nil {
		t.Fatalf("expected signature failure")
	}
	if _, err := IssueToken(secret, "alice", Role("root"), time.Hour); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
	if _, err := IssueToken(secret, "", RoleUser, time.Hour); err == nil {
		t.Fatalf("expected empty subject to be rejected")
	}
}

func TestParseJWTRequiresExpiry(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "user",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(signed, secret); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}

	expired, err := IssueToken(secret, "bob", RoleUser, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseJWT(expired, secret); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
