// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/midora/internal/platform/middleware"
	"github.com/taibuivan/midora/internal/platform/sec"
)

// fakeVerifier maps literal token strings to claim sets.
type fakeVerifier struct {
	tokens map[string]*sec.SessionClaims
}

func (v *fakeVerifier) VerifyToken(tokenStr string) (*sec.SessionClaims, error) {
	claims, ok := v.tokens[tokenStr]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func newProtectedServer(role string) http.Handler {
	verifier := &fakeVerifier{tokens: map[string]*sec.SessionClaims{
		"admin-token": {Email: "root@example.com", Roles: []string{"admin", "user"}},
		"user-token":  {Email: "user@example.com", Roles: []string{"user"}},
	}}

	okHandler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})

	return middleware.Authenticate(verifier)(middleware.RequireRole(role)(okHandler))
}

/*
TestRequireRole covers the 401/403/200 matrix for role-guarded routes.
*/
func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no_token", "", http.StatusUnauthorized},
		{"malformed_header", "admin-token", http.StatusUnauthorized},
		{"unknown_token", "Bearer garbage", http.StatusUnauthorized},
		{"missing_role", "Bearer user-token", http.StatusForbidden},
		{"role_held", "Bearer admin-token", http.StatusOK},
	}

	server := newProtectedServer("admin")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			if tt.authHeader != "" {
				request.Header.Set("Authorization", tt.authHeader)
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}

/*
TestRequireRole_FlatMembership pins that roles are a flat set: holding
"admin" does not imply "user" access unless "user" is also held.
*/
func TestRequireRole_FlatMembership(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]*sec.SessionClaims{
		"admin-only": {Email: "a@example.com", Roles: []string{"admin"}},
	}}

	okHandler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
	server := middleware.Authenticate(verifier)(middleware.RequireRole("user")(okHandler))

	request := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	request.Header.Set("Authorization", "Bearer admin-only")

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

/*
TestRequireAuth checks the bare authentication gate.
*/
func TestRequireAuth(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]*sec.SessionClaims{
		"user-token": {Email: "user@example.com", Roles: []string{"user"}},
	}}

	okHandler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
	server := middleware.Authenticate(verifier)(middleware.RequireAuth(okHandler))

	// Anonymous request is rejected.
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/user/me", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Authenticated request passes.
	request := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	request.Header.Set("Authorization", "Bearer user-token")
	recorder = httptest.NewRecorder()
	server.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
