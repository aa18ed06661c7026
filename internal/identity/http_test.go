// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/midora/internal/identity"
	"github.com/taibuivan/midora/internal/platform/middleware"
	"github.com/taibuivan/midora/internal/platform/sec"
)

// staticVerifier resolves two fixed bearer tokens for handler tests.
type staticVerifier struct{}

func (staticVerifier) VerifyToken(tokenStr string) (*sec.SessionClaims, error) {
	switch tokenStr {
	case "admin-token":
		return &sec.SessionClaims{Email: "root@example.com", Name: "Root", Roles: []string{"admin", "user"}}, nil
	case "user-token":
		return &sec.SessionClaims{Email: "alice@example.com", Roles: []string{"user"}}, nil
	}
	return nil, errors.New("invalid token")
}

func newIdentityServer(t *testing.T) (http.Handler, *identity.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := identity.NewMemoryStore()
	service := identity.NewService(store, nil, "send-email", sec.DefaultPasswordPolicy(), logger)
	handler := identity.NewHandler(service)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(staticVerifier{}))
	router.Mount("/admin", handler.AdminRoutes())
	router.Mount("/user", handler.UserRoutes())

	return router, service
}

func doRequest(t *testing.T, server http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, nil)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)
	return recorder
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

/*
TestAdminRoutes_RoleLifecycle drives promote/demote/delete through the
HTTP surface and checks the envelope and status codes.
*/
func TestAdminRoutes_RoleLifecycle(t *testing.T) {
	server, service := newIdentityServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	require.NoError(t, service.EnsureAdmin(ctx, "root@example.com", "secret-pass"))
	_, err := service.CreateUser(ctx, "alice@example.com", "secret-pass", false)
	require.NoError(t, err)

	// Promote alice.
	recorder := doRequest(t, server, http.MethodPost, "/admin/add-role/alice@example.com?role=admin", "admin-token")
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeEnvelope(t, recorder)
	assert.True(t, body.Success)
	assert.Equal(t, "User alice@example.com successfully promoted to admin.", body.Message)

	// Demote alice again (root is still admin, so this is legal).
	recorder = doRequest(t, server, http.MethodDelete, "/admin/remove-role/alice@example.com?role=admin", "admin-token")
	require.Equal(t, http.StatusOK, recorder.Code)
	body = decodeEnvelope(t, recorder)
	assert.Equal(t, "Role admin successfully removed from user alice@example.com.", body.Message)

	// Delete alice.
	recorder = doRequest(t, server, http.MethodDelete, "/admin/delete-user/alice@example.com", "admin-token")
	require.Equal(t, http.StatusOK, recorder.Code)
	body = decodeEnvelope(t, recorder)
	assert.Equal(t, "User alice@example.com successfully deleted.", body.Message)
}

/*
TestAdminRoutes_ErrorStatusCodes checks that failures carry real HTTP
status codes in the shared envelope.
*/
func TestAdminRoutes_ErrorStatusCodes(t *testing.T) {
	server, service := newIdentityServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	require.NoError(t, service.EnsureAdmin(ctx, "root@example.com", "secret-pass"))

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{"anonymous", http.MethodGet, "/admin/users", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"non_admin", http.MethodGet, "/admin/users", "user-token", http.StatusForbidden, "FORBIDDEN"},
		{"unknown_user", http.MethodPost, "/admin/add-role/ghost@example.com?role=admin", "admin-token", http.StatusNotFound, "NOT_FOUND"},
		{"unknown_role", http.MethodPost, "/admin/add-role/root@example.com?role=superuser", "admin-token", http.StatusNotFound, "NOT_FOUND"},
		{"missing_role_param", http.MethodPost, "/admin/add-role/root@example.com", "admin-token", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"demote_last_admin", http.MethodDelete, "/admin/remove-role/root@example.com?role=admin", "admin-token", http.StatusBadRequest, "INVARIANT_VIOLATION"},
		{"delete_last_admin", http.MethodDelete, "/admin/delete-user/root@example.com", "admin-token", http.StatusBadRequest, "INVARIANT_VIOLATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(t, server, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, recorder.Code)

			body := decodeEnvelope(t, recorder)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

/*
TestUserRoutes_Me checks the self-service profile endpoint.
*/
func TestUserRoutes_Me(t *testing.T) {
	server, service := newIdentityServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	_, err := service.CreateUser(ctx, "alice@example.com", "secret-pass", false)
	require.NoError(t, err)

	// Anonymous is rejected.
	recorder := doRequest(t, server, http.MethodGet, "/user/me", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Authenticated user gets their profile with the current role set.
	recorder = doRequest(t, server, http.MethodGet, "/user/me", "user-token")
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeEnvelope(t, recorder)
	var profile struct {
		UserName string   `json:"userName"`
		Email    string   `json:"email"`
		Roles    []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &profile))
	assert.Equal(t, "alice@example.com", profile.UserName)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, []string{"user"}, profile.Roles)
}
