// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taibuivan/midora/internal/platform/apperr"
)

// MemoryStore is an in-process [Store] used by tests and local development.
//
// It preserves insertion order for ListUsers ("stable storage order") and
// serializes every operation behind a single mutex, which trivially
// satisfies the per-user atomicity contract of [Store.WithUserLock].
type MemoryStore struct {
	mutex sync.Mutex
	users map[string]*User
	order []string // Insertion order of normalized emails.
	roles []string
}

// NewMemoryStore creates a MemoryStore provisioned with the standard roles.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		roles: []string{RoleAdmin, RoleUser},
	}
}

// lockedView is the re-entrant view handed to WithUserLock callbacks.
//
// The outer store's mutex is already held, so the view calls the unlocked
// internals directly.
type lockedView struct {
	store *MemoryStore
}

// FindByEmail returns the account with the given normalized email.
func (store *MemoryStore) FindByEmail(context context.Context, email string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.findByEmail(email)
}

func (store *MemoryStore) findByEmail(email string) (*User, error) {
	user, found := store.users[email]
	if !found {
		return nil, apperr.NotFound(fmt.Sprintf("User %s not found", email))
	}
	return cloneUser(user), nil
}

// Create persists a brand-new user account.
func (store *MemoryStore) Create(context context.Context, user *User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.create(user)
}

func (store *MemoryStore) create(user *User) error {
	if _, exists := store.users[user.Email]; exists {
		return apperr.Conflict(fmt.Sprintf("User %s already exists", user.Email))
	}
	stored := cloneUser(user)
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	store.users[user.Email] = stored
	store.order = append(store.order, user.Email)
	return nil
}

// AddRole grants a role to the user.
func (store *MemoryStore) AddRole(context context.Context, email, role string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.addRole(email, role)
}

func (store *MemoryStore) addRole(email, role string) error {
	user, found := store.users[email]
	if !found {
		return apperr.NotFound(fmt.Sprintf("User %s not found", email))
	}
	if !user.HasRole(role) {
		user.Roles = append(user.Roles, role)
		user.UpdatedAt = time.Now()
	}
	return nil
}

// RemoveRole revokes a role from the user.
func (store *MemoryStore) RemoveRole(context context.Context, email, role string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.removeRole(email, role)
}

func (store *MemoryStore) removeRole(email, role string) error {
	user, found := store.users[email]
	if !found {
		return apperr.NotFound(fmt.Sprintf("User %s not found", email))
	}
	remaining := user.Roles[:0]
	for _, held := range user.Roles {
		if held != role {
			remaining = append(remaining, held)
		}
	}
	user.Roles = remaining
	user.UpdatedAt = time.Now()
	return nil
}

// Delete permanently removes the account.
func (store *MemoryStore) Delete(context context.Context, email string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.delete(email)
}

func (store *MemoryStore) delete(email string) error {
	if _, found := store.users[email]; !found {
		return apperr.NotFound(fmt.Sprintf("User %s not found", email))
	}
	delete(store.users, email)
	for index, stored := range store.order {
		if stored == email {
			store.order = append(store.order[:index], store.order[index+1:]...)
			break
		}
	}
	return nil
}

// ListUsers returns every account in insertion order.
func (store *MemoryStore) ListUsers(context context.Context) ([]*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.listUsers()
}

func (store *MemoryStore) listUsers() ([]*User, error) {
	users := make([]*User, 0, len(store.order))
	for _, email := range store.order {
		users = append(users, cloneUser(store.users[email]))
	}
	return users, nil
}

// ListRoles returns the provisioned role names.
func (store *MemoryStore) ListRoles(context context.Context) ([]string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]string(nil), store.roles...), nil
}

// RoleExists reports whether a role name is provisioned.
func (store *MemoryStore) RoleExists(context context.Context, role string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.roleExists(role)
}

func (store *MemoryStore) roleExists(role string) (bool, error) {
	for _, provisioned := range store.roles {
		if provisioned == role {
			return true, nil
		}
	}
	return false, nil
}

// CountInRole returns the number of users currently holding the role.
func (store *MemoryStore) CountInRole(context context.Context, role string) (int, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.countInRole(role)
}

func (store *MemoryStore) countInRole(role string) (int, error) {
	count := 0
	for _, user := range store.users {
		if user.HasRole(role) {
			count++
		}
	}
	return count, nil
}

// WithUserLock runs fn while holding the store-wide mutex.
//
// A single mutex is coarser than the per-row lock the PostgreSQL adapter
// takes, but it provides the same atomicity guarantee for a test double.
func (store *MemoryStore) WithUserLock(context context.Context, email string, fn func(store Store) error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return fn(&lockedView{store: store})
}

// # Locked View (mutex already held)

func (view *lockedView) FindByEmail(context context.Context, email string) (*User, error) {
	return view.store.findByEmail(email)
}

func (view *lockedView) Create(context context.Context, user *User) error {
	return view.store.create(user)
}

func (view *lockedView) AddRole(context context.Context, email, role string) error {
	return view.store.addRole(email, role)
}

func (view *lockedView) RemoveRole(context context.Context, email, role string) error {
	return view.store.removeRole(email, role)
}

func (view *lockedView) Delete(context context.Context, email string) error {
	return view.store.delete(email)
}

func (view *lockedView) ListUsers(context context.Context) ([]*User, error) {
	return view.store.listUsers()
}

func (view *lockedView) ListRoles(context context.Context) ([]string, error) {
	return append([]string(nil), view.store.roles...), nil
}

func (view *lockedView) RoleExists(context context.Context, role string) (bool, error) {
	return view.store.roleExists(role)
}

func (view *lockedView) CountInRole(context context.Context, role string) (int, error) {
	return view.store.countInRole(role)
}

func (view *lockedView) WithUserLock(context context.Context, email string, fn func(store Store) error) error {
	// Already inside the lock; nested sections run directly.
	return fn(view)
}

// cloneUser copies a user so callers can't mutate stored state.
func cloneUser(user *User) *User {
	copied := *user
	copied.Roles = append([]string(nil), user.Roles...)
	return &copied
}
