// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and session token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the token issuer and verifier interfaces.
package sec

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims represents the payload embedded inside a session token.
//
// # Why custom claims?
//
// By embedding the email, display name, and role set directly inside the JWT,
// middleware can reconstruct the active user context WITHOUT querying the
// database on every single API request. The claim set is a pure function of
// the user and roles at issuance time: the server keeps no session table and
// validity is purely cryptographic plus expiry.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Email is the account's unique, normalized email address.
	Email string `json:"email"`

	// Name is the display name; an empty string when the identity
	// provider (or sign-up form) supplied none.
	Name string `json:"name"`

	// Picture is an optional avatar URL carried from a federated
	// identity provider. Never persisted on the user record.
	Picture string `json:"picture,omitempty"`

	// Roles holds one entry per role the user held at issuance time.
	Roles []string `json:"roles"`
}

// HasRole reports whether the claim set includes the given role.
func (c *SessionClaims) HasRole(role string) bool {
	for _, held := range c.Roles {
		if held == role {
			return true
		}
	}
	return false
}
