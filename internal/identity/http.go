// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/midora/internal/platform/middleware"
	requestutil "github.com/taibuivan/midora/internal/platform/request"
	"github.com/taibuivan/midora/internal/platform/respond"
	"github.com/taibuivan/midora/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the identity and role management HTTP endpoints.
type Handler struct {
	identityService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{identityService: service}
}

// AdminRoutes returns a [chi.Router] with the role management surface.
//
// Every route requires the admin role; the router must be mounted behind
// [middleware.Authenticate].
//
// # Endpoints
//   - POST   /add-role/{email}    : Grants a role (?role= query).
//   - DELETE /remove-role/{email} : Revokes a role (?role= query).
//   - DELETE /delete-user/{email} : Permanently removes the account.
//   - GET    /users               : Lists every account.
//   - GET    /roles               : Lists every provisioned role.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(RoleAdmin))

	router.Post("/add-role/{email}", handler.addRole)
	router.Delete("/remove-role/{email}", handler.removeRole)
	router.Delete("/delete-user/{email}", handler.deleteUser)
	router.Get("/users", handler.listUsers)
	router.Get("/roles", handler.listRoles)

	return router
}

// UserRoutes returns a [chi.Router] with the self-service surface.
//
// # Endpoints
//   - GET /me : Profile of the authenticated user.
func (handler *Handler) UserRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/me", handler.me)

	return router
}

// # Response Payloads

type userProfile struct {
	UserName string   `json:"userName"`
	Email    string   `json:"email"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
}

func newUserProfile(user *User, name string) userProfile {
	return userProfile{
		UserName: user.Email, // The email doubles as the username.
		Email:    user.Email,
		Name:     name,
		Roles:    user.Roles,
	}
}

/*
AddRole grants a role to a user.

POST /admin/add-role/{email}?role=...

Response:
  - 200: Confirmation message and {email, role}
  - 404: ErrNotFound: Unknown user or role
*/
func (handler *Handler) addRole(writer http.ResponseWriter, request *http.Request) {
	email := requestutil.Param(request, FieldEmail)
	role := requestutil.Query(request, FieldRole)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Custom(FieldRole, role == "", "Role query parameter is required")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.identityService.AddRole(request.Context(), email, role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer,
		fmt.Sprintf("User %s successfully promoted to %s.", user.Email, role),
		map[string]string{FieldEmail: user.Email, FieldRole: role},
	)
}

/*
RemoveRole revokes a role from a user.

DELETE /admin/remove-role/{email}?role=...

Response:
  - 200: Confirmation message and {email, role}
  - 400: ErrInvariantViolation: Sole role or last administrator
  - 404: ErrNotFound: Unknown user or role
*/
func (handler *Handler) removeRole(writer http.ResponseWriter, request *http.Request) {
	email := requestutil.Param(request, FieldEmail)
	role := requestutil.Query(request, FieldRole)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Custom(FieldRole, role == "", "Role query parameter is required")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.identityService.RemoveRole(request.Context(), email, role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer,
		fmt.Sprintf("Role %s successfully removed from user %s.", role, user.Email),
		map[string]string{FieldEmail: user.Email, FieldRole: role},
	)
}

/*
DeleteUser permanently removes an account.

DELETE /admin/delete-user/{email}

Response:
  - 200: Confirmation message and {email}
  - 400: ErrInvariantViolation: Last administrator
  - 404: ErrNotFound: Unknown user
*/
func (handler *Handler) deleteUser(writer http.ResponseWriter, request *http.Request) {
	email := requestutil.Param(request, FieldEmail)
	if email == "" {
		respond.Error(writer, request, validate.RequiredError(FieldEmail, "is required"))
		return
	}

	if err := handler.identityService.DeleteUser(request.Context(), email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKMessage(writer,
		fmt.Sprintf("User %s successfully deleted.", NormalizeEmail(email)),
		map[string]string{FieldEmail: NormalizeEmail(email)},
	)
}

/*
ListUsers returns every registered account.

GET /admin/users

Response:
  - 200: []userProfile in stable storage order
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	users, err := handler.identityService.ListUsers(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profiles := make([]userProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, newUserProfile(user, ""))
	}
	respond.OK(writer, profiles)
}

/*
ListRoles returns every provisioned role name.

GET /admin/roles

Response:
  - 200: []string of role names
*/
func (handler *Handler) listRoles(writer http.ResponseWriter, request *http.Request) {
	roles, err := handler.identityService.ListRoles(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, roles)
}

/*
Me returns the profile of the authenticated user.

GET /user/me

Description: The account is re-read from storage so the response reflects
the current role set, not the (possibly stale) roles frozen in the token.
The display name still comes from the token: it is never persisted.

Response:
  - 200: userProfile
  - 401: ErrUnauthorized: Missing or invalid token, or the account no
    longer exists
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.identityService.GetByEmail(request.Context(), claims.Email)
	if err != nil {
		// A token for a since-deleted account is no longer valid.
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, newUserProfile(user, claims.Name))
}
