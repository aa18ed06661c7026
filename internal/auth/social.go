// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/taibuivan/midora/internal/platform/apperr"
)

// SocialAuthenticator bridges a federated identity provider into the
// authentication flow.
type SocialAuthenticator interface {

	/*
		InitiateLogin redirects the browser to the provider's authorization
		endpoint, carrying state for the callback.

		Parameters:
		  - writer: http.ResponseWriter
		  - request: *http.Request
		  - state: string (round-tripped through the provider)
	*/
	InitiateLogin(writer http.ResponseWriter, request *http.Request, state string)

	/*
		HandleCallback exchanges the authorization code and verifies the
		provider's ID token.

		Parameters:
		  - ctx: context.Context
		  - code: string (authorization code from the callback query)

		Returns:
		  - *ExternalClaims: The provider-asserted identity
		  - error: apperr.Unauthorized when exchange or verification fails
	*/
	HandleCallback(ctx context.Context, code string) (*ExternalClaims, error)
}

// OIDCConfig carries the provider settings for [OIDCAuthenticator].
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCAuthenticator implements [SocialAuthenticator] over OpenID Connect.
type OIDCAuthenticator struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCAuthenticator discovers the provider's endpoints and builds the
// authorization-code flow configuration.
func NewOIDCAuthenticator(ctx context.Context, config OIDCConfig) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to discover OIDC provider: %w", err)
	}

	return &OIDCAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// InitiateLogin implements [SocialAuthenticator].
func (authenticator *OIDCAuthenticator) InitiateLogin(writer http.ResponseWriter, request *http.Request, state string) {
	authURL := authenticator.oauth2Config.AuthCodeURL(state)
	http.Redirect(writer, request, authURL, http.StatusFound)
}

// HandleCallback implements [SocialAuthenticator].
func (authenticator *OIDCAuthenticator) HandleCallback(ctx context.Context, code string) (*ExternalClaims, error) {
	if code == "" {
		return nil, apperr.Unauthorized("Missing authorization code")
	}

	oauth2Token, err := authenticator.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Unauthorized("Authorization code exchange failed")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, apperr.Unauthorized("Identity provider response is missing an id_token")
	}

	idToken, err := authenticator.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperr.Unauthorized("Identity token verification failed")
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperr.Unauthorized("Identity token claims could not be parsed")
	}

	return &ExternalClaims{
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
