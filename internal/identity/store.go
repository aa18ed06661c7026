// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
)

// # Identity Data Access

// Store defines the data access contract for user accounts and role
// memberships.
//
// Implementations must treat emails as already normalized (callers go
// through [NormalizeEmail]) and must NOT perform invariant checks: the
// sole-role and last-admin rules belong to the [Service] layer.
type Store interface {

	/*
		FindByEmail returns the account with the given normalized email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity with its full role set
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account with its initial role set.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict if the email is taken, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		AddRole grants a role to the user. Adding a role the user already
		holds is a storage-level no-op.

		Parameters:
		  - context: context.Context
		  - email: string
		  - role: string

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	AddRole(context context.Context, email, role string) error

	/*
		RemoveRole revokes a role from the user.

		Parameters:
		  - context: context.Context
		  - email: string
		  - role: string

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	RemoveRole(context context.Context, email, role string) error

	/*
		Delete permanently removes the account and its role memberships.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	Delete(context context.Context, email string) error

	/*
		ListUsers returns every account in stable storage order.

		Parameters:
		  - context: context.Context

		Returns:
		  - []*User: Accounts with their role sets
		  - error: Retrieval failures
	*/
	ListUsers(context context.Context) ([]*User, error)

	/*
		ListRoles returns the names of all provisioned roles.

		Parameters:
		  - context: context.Context

		Returns:
		  - []string: Role names
		  - error: Retrieval failures
	*/
	ListRoles(context context.Context) ([]string, error)

	/*
		RoleExists reports whether a role name is provisioned.

		Parameters:
		  - context: context.Context
		  - role: string

		Returns:
		  - bool: true when the role exists
		  - error: Retrieval failures
	*/
	RoleExists(context context.Context, role string) (bool, error)

	/*
		CountInRole returns the number of users currently holding the role.

		Parameters:
		  - context: context.Context
		  - role: string

		Returns:
		  - int: Membership count
		  - error: Retrieval failures
	*/
	CountInRole(context context.Context, role string) (int, error)

	/*
		WithUserLock runs fn against a store view that holds an exclusive
		per-user lock for the duration of the call.

		Description: The last-admin and sole-role checks must observe and
		mutate the same state atomically; two concurrent removals must not
		both read "not last" and both succeed. Implementations provide
		row-level locking (SELECT ... FOR UPDATE) or an equivalent mutex.

		Parameters:
		  - context: context.Context
		  - email: string (the user row to lock; locking an absent row is not an error)
		  - fn: func(store Store) error (invariant check + mutation sequence)

		Returns:
		  - error: fn's error, or transaction failures
	*/
	WithUserLock(context context.Context, email string, fn func(store Store) error) error
}
