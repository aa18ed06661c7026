// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the authentication flows of the Midora platform.

It orchestrates the identity layer, credential verification, and session
token issuance into three entry points: local sign-up, local sign-in, and
federated (OpenID Connect) sign-in.

# Security

Every local sign-in failure — unknown account, wrong password, or a
federated-only account with no local password — collapses to the same
generic Unauthorized error. Distinguishing the cases would let an attacker
enumerate registered email addresses.
*/
package auth

import (
	"context"
	"log/slog"

	"github.com/taibuivan/midora/internal/identity"
	"github.com/taibuivan/midora/internal/platform/apperr"
	"github.com/taibuivan/midora/internal/platform/sec"
)

// credentialFailureMessage is the single message every local sign-in
// failure mode maps to.
const credentialFailureMessage = "Invalid login credentials"

// ExternalClaims carries the verified identity facts a federated provider
// asserted about the user.
type ExternalClaims struct {
	Email   string
	Name    string
	Picture string
}

// LoginResult bundles the authenticated account with its session token.
type LoginResult struct {
	User  *identity.User
	Token string
}

// Service orchestrates sign-up and sign-in across the identity layer and
// the token issuer.
type Service struct {
	users  *identity.Service
	tokens *sec.TokenService
	logger *slog.Logger
}

// NewService wires the authentication orchestrator.
func NewService(users *identity.Service, tokens *sec.TokenService, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

/*
SignUp registers a local account and signs it in.

Parameters:
  - ctx: context.Context
  - email: string (raw; normalized by the identity layer)
  - password: string (plain text, validated against the password policy)

Returns:
  - *LoginResult: The new account and its session token
  - error: apperr.ValidationError, apperr.Conflict, or downstream failures
*/
func (service *Service) SignUp(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := service.users.CreateUser(ctx, email, password, false)
	if err != nil {
		return nil, err
	}
	return service.issueFor(user, "", "")
}

/*
SignInEmail authenticates a local account by email and password.

Description: Unknown accounts, wrong passwords, and federated-only accounts
all fail with the identical Unauthorized error to resist enumeration.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - *LoginResult: The account and a fresh session token
  - error: apperr.Unauthorized on any credential failure
*/
func (service *Service) SignInEmail(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := service.users.GetByEmail(ctx, email)
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.Code == "NOT_FOUND" {
			return nil, apperr.Unauthorized(credentialFailureMessage)
		}
		return nil, err
	}

	// Federated-only accounts carry no local hash; they must use the
	// external flow. Same generic failure as a wrong password.
	if user.IsFederated() || !sec.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Unauthorized(credentialFailureMessage)
	}

	return service.issueFor(user, "", "")
}

/*
SignInFederated signs in (or provisions) an account asserted by a federated
identity provider.

Description: Find-or-create semantics — an existing account keeps its roles
and profile untouched; a new one is created with the default role and a
confirmed email. The provider's display name and picture ride in the token
claims only, never on the stored account.

Parameters:
  - ctx: context.Context
  - claims: ExternalClaims (already verified by the provider bridge)

Returns:
  - *LoginResult: The account and a fresh session token
  - error: apperr.ValidationError when the provider omitted an email
*/
func (service *Service) SignInFederated(ctx context.Context, claims ExternalClaims) (*LoginResult, error) {
	if claims.Email == "" {
		return nil, apperr.ValidationError("Identity provider did not supply an email address")
	}

	user, err := service.users.CreateUser(ctx, claims.Email, "", true)
	if err != nil {
		return nil, err
	}
	return service.issueFor(user, claims.Name, claims.Picture)
}

// issueFor mints a session token reflecting the account's current role set.
func (service *Service) issueFor(user *identity.User, name, picture string) (*LoginResult, error) {
	token, err := service.tokens.IssueToken(sec.TokenInput{
		Subject: user.Email,
		Email:   user.Email,
		Name:    name,
		Picture: picture,
		Roles:   user.Roles,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	service.logger.Info("session_issued",
		slog.String("subject", user.Email),
		slog.Int("role_count", len(user.Roles)),
	)
	return &LoginResult{User: user, Token: token}, nil
}
