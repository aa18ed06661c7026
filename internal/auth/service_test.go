// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/midora/internal/auth"
	"github.com/taibuivan/midora/internal/identity"
	"github.com/taibuivan/midora/internal/platform/apperr"
	"github.com/taibuivan/midora/internal/platform/sec"
)

func newTestAuthService(t *testing.T) (*auth.Service, *identity.Service, *sec.TokenService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := identity.NewMemoryStore()
	users := identity.NewService(store, nil, "send-email", sec.DefaultPasswordPolicy(), logger)

	tokens, err := sec.NewTokenService("auth-test-key", "midora-test", "midora-clients", sec.DefaultVerifyConfig())
	require.NoError(t, err)

	return auth.NewService(users, tokens, logger), users, tokens
}

/*
TestService_SignUp checks registration plus immediate session issuance.
*/
func TestService_SignUp(t *testing.T) {
	service, _, tokens := newTestAuthService(t)

	result, err := service.SignUp(context.Background(), "alice@example.com", "secret-pass")
	require.NoError(t, err)
	require.NotNil(t, result.User)
	require.NotEmpty(t, result.Token)

	claims, err := tokens.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, []string{identity.RoleUser}, claims.Roles)
}

/*
TestService_SignInEmail checks the happy path and that the token role set
reflects the account's current roles.
*/
func TestService_SignInEmail(t *testing.T) {
	service, users, tokens := newTestAuthService(t)
	ctx := context.Background()

	_, err := service.SignUp(ctx, "bob@example.com", "secret-pass")
	require.NoError(t, err)
	_, err = users.AddRole(ctx, "bob@example.com", identity.RoleAdmin)
	require.NoError(t, err)

	result, err := service.SignInEmail(ctx, "bob@example.com", "secret-pass")
	require.NoError(t, err)

	claims, err := tokens.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{identity.RoleUser, identity.RoleAdmin}, claims.Roles)
}

/*
TestService_SignInEmail_EnumerationResistance checks that every credential
failure mode yields the identical Unauthorized error.
*/
func TestService_SignInEmail_EnumerationResistance(t *testing.T) {
	service, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := service.SignUp(ctx, "carol@example.com", "secret-pass")
	require.NoError(t, err)

	// Federated-only account with no local password.
	_, err = service.SignInFederated(ctx, auth.ExternalClaims{Email: "dave@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown_account", "nobody@example.com", "whatever"},
		{"wrong_password", "carol@example.com", "not-the-password"},
		{"federated_only_account", "dave@example.com", "any-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.SignInEmail(ctx, tt.email, tt.password)
			require.Error(t, err)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "UNAUTHORIZED", ae.Code)
			assert.Equal(t, "Invalid login credentials", ae.Message)
		})
	}
}

/*
TestService_SignInFederated checks provisioning, re-sign-in stability, and
the provider-claim passthrough into the token.
*/
func TestService_SignInFederated(t *testing.T) {
	service, users, tokens := newTestAuthService(t)
	ctx := context.Background()

	result, err := service.SignInFederated(ctx, auth.ExternalClaims{
		Email:   "erin@example.com",
		Name:    "Erin Idp",
		Picture: "https://img.example.com/erin.png",
	})
	require.NoError(t, err)

	claims, err := tokens.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", claims.Email)
	assert.Equal(t, "Erin Idp", claims.Name)
	assert.Equal(t, "https://img.example.com/erin.png", claims.Picture)
	assert.Equal(t, []string{identity.RoleUser}, claims.Roles)

	// Promote, sign in again: account untouched, fresh roles in the token.
	_, err = users.AddRole(ctx, "erin@example.com", identity.RoleAdmin)
	require.NoError(t, err)

	again, err := service.SignInFederated(ctx, auth.ExternalClaims{Email: "erin@example.com"})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID)

	claims, err = tokens.VerifyToken(again.Token)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{identity.RoleUser, identity.RoleAdmin}, claims.Roles)
}

/*
TestService_SignInFederated_MissingEmail checks that a provider assertion
without an email cannot create an account.
*/
func TestService_SignInFederated_MissingEmail(t *testing.T) {
	service, _, _ := newTestAuthService(t)

	_, err := service.SignInFederated(context.Background(), auth.ExternalClaims{Name: "No Email"})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "VALIDATION_ERROR", ae.Code)
}
