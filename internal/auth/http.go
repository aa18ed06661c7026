// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/midora/internal/identity"
	"github.com/taibuivan/midora/internal/platform/apperr"
	requestutil "github.com/taibuivan/midora/internal/platform/request"
	"github.com/taibuivan/midora/internal/platform/respond"
	"github.com/taibuivan/midora/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// # Scope
//
// Local sign-up/sign-in plus the federated redirect flow. Role management
// lives in the identity handler, not here.
type Handler struct {
	authService *Service
	social      SocialAuthenticator
}

// NewHandler constructs a new [Handler]. The social authenticator may be
// nil, in which case the federated endpoints answer 404.
func NewHandler(service *Service, social SocialAuthenticator) *Handler {
	return &Handler{authService: service, social: social}
}

// Routes returns a [chi.Router] configured with the authentication routes.
//
// # Endpoints
//   - POST /signup                    : Creates an account and signs it in.
//   - POST /signin/email              : Local email/password sign-in.
//   - GET  /signin/external           : Redirects to the identity provider.
//   - GET  /signin/external/callback  : Completes the federated flow.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/signup", handler.signUp)
	router.Post("/signin/email", handler.signInEmail)

	if handler.social != nil {
		router.Get("/signin/external", handler.signInExternal)
		router.Get("/signin/external/callback", handler.signInExternalCallback)
	}

	return router
}

// # Request / Response Payloads

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userInfo struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email"`
	Picture string   `json:"picture,omitempty"`
	Roles   []string `json:"roles"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userInfo `json:"user"`
}

func newLoginResponse(result *LoginResult, name, picture string) loginResponse {
	return loginResponse{
		Token: result.Token,
		User: userInfo{
			Name:    name,
			Email:   result.User.Email,
			Picture: picture,
			Roles:   result.User.Roles,
		},
	}
}

/*
SignUp registers a local account and returns its first session token.

POST /signup

Request:
  - Body: credentialsRequest (Email, Password)

Response:
  - 201: loginResponse: Token and user profile
  - 400: ErrInvalidJSON: Bad input or policy violation
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) signUp(writer http.ResponseWriter, request *http.Request) {
	var input credentialsRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(identity.FieldEmail, input.Email).
		Email(identity.FieldEmail, input.Email).
		Required(identity.FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.SignUp(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, newLoginResponse(result, "", ""))
}

/*
SignInEmail authenticates a local account.

POST /signin/email

Request:
  - Body: credentialsRequest (Email, Password)

Response:
  - 200: loginResponse: Token and user profile
  - 401: ErrUnauthorized: Invalid login credentials
*/
func (handler *Handler) signInEmail(writer http.ResponseWriter, request *http.Request) {
	var input credentialsRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(identity.FieldEmail, input.Email).
		Required(identity.FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.SignInEmail(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, newLoginResponse(result, "", ""))
}

/*
SignInExternal starts the federated sign-in flow.

GET /signin/external?redirectUrl=...

Description: Sends the browser to the identity provider's authorization
endpoint. The caller's redirectUrl rides in the OAuth2 state parameter and
receives the session token on completion.

Response:
  - 302: Redirect to the identity provider
  - 400: ErrInvalidJSON: Missing or unparsable redirectUrl
*/
func (handler *Handler) signInExternal(writer http.ResponseWriter, request *http.Request) {
	redirectURL := requestutil.Query(request, "redirectUrl")
	if redirectURL == "" {
		respond.Error(writer, request, validate.RequiredError("redirectUrl", "Query parameter is required"))
		return
	}
	if _, err := url.Parse(redirectURL); err != nil {
		respond.Error(writer, request, validate.RequiredError("redirectUrl", "Must be a valid URL"))
		return
	}

	handler.social.InitiateLogin(writer, request, redirectURL)
}

/*
SignInExternalCallback completes the federated sign-in flow.

GET /signin/external/callback?code=...&state=...

Description: Exchanges the authorization code, provisions the account on
first sight, and redirects back to the state-carried redirectUrl with the
session token appended as ?token=.

Response:
  - 302: Redirect to redirectUrl?token=<jwt>
  - 400: ErrValidation: Provider omitted the email claim
  - 401: ErrUnauthorized: Code exchange or token verification failed
*/
func (handler *Handler) signInExternalCallback(writer http.ResponseWriter, request *http.Request) {
	redirectURL := requestutil.Query(request, "state")
	if redirectURL == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing state parameter"))
		return
	}

	claims, err := handler.social.HandleCallback(request.Context(), requestutil.Query(request, "code"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.SignInFederated(request.Context(), *claims)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	target := fmt.Sprintf("%s?token=%s", redirectURL, url.QueryEscape(result.Token))
	http.Redirect(writer, request, target, http.StatusFound)
}
