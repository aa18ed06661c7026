// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity implements the user identity and role management layer.

It defines the core domain entity (User), the storage contract, and the
role-mutation service enforcing the platform's safety invariants:

  - Every persisted user holds at least one role at all times.
  - The set of administrators can never shrink to zero: the last admin
    may not be demoted or deleted.
  - Email addresses are case-insensitively unique and double as usernames.

# Architecture

This layer is the "Truth" of the system. The invariant checks live in the
[Service], above the [Store] interface; stores only provide persistence and
the per-user atomicity the check-then-mutate sequences require.
*/
package identity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// # Role Names

// Roles are a fixed set defined at provisioning time (see data/migrations).
// Users reference roles by name; they never own them.
const (
	// RoleAdmin grants access to the /admin management surface.
	RoleAdmin = "admin"

	// RoleUser is the default role assigned to every new account.
	RoleUser = "user"
)

// # Domain Entities

// User represents a registered member of the Midora platform.
//
// The email address doubles as the username. PasswordHash is empty for
// federated-only accounts that have never set a local password.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // Explicitly omitted from JSON for security.
	EmailConfirmed bool      `json:"email_confirmed"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasRole reports whether the user currently holds the given role.
func (user *User) HasRole(role string) bool {
	for _, held := range user.Roles {
		if held == role {
			return true
		}
	}
	return false
}

// IsFederated reports whether the account was created by a federated
// identity provider and carries no local password.
func (user *User) IsFederated() bool {
	return user.PasswordHash == ""
}

// # Normalization

// caseFolder performs full Unicode case folding, which is stricter than
// ASCII lowercasing for addresses containing non-Latin characters.
var caseFolder = cases.Fold()

// NormalizeEmail canonicalizes an email address for case-insensitive
// uniqueness: trimmed and case-folded.
func NormalizeEmail(email string) string {
	return caseFolder.String(strings.TrimSpace(email))
}

// # Field Identifiers

// Global field names for validation and identity mapping in the identity domain.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldName     = "name"
	FieldRole     = "role"
	FieldToken    = "token"
	FieldUser     = "user"
	FieldMessage  = "message"
)
