// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/midora/internal/platform/apperr"
	"github.com/taibuivan/midora/internal/platform/dberr"
)

// querier is the subset of pgxpool.Pool / pgx.Tx both adapters satisfy, so
// the same query methods serve pooled and transactional execution.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production [Store] backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore over the shared connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// # Queries

const (
	queryFindUserByEmail = `
		SELECT u.id, u.email, u.password_hash, u.email_confirmed, u.created_at, u.updated_at
		FROM users u
		WHERE u.email = $1`

	queryUserRoles = `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`

	queryInsertUser = `
		INSERT INTO users (id, email, password_hash, email_confirmed)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	queryInsertUserRole = `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, r.id FROM roles r WHERE r.name = $2
		ON CONFLICT DO NOTHING`

	queryDeleteUserRole = `
		DELETE FROM user_roles
		WHERE user_id = (SELECT id FROM users WHERE email = $1)
		  AND role_id = (SELECT id FROM roles WHERE name = $2)`

	queryDeleteUser = `
		DELETE FROM users WHERE email = $1`

	queryListUsers = `
		SELECT u.id, u.email, u.password_hash, u.email_confirmed, u.created_at, u.updated_at
		FROM users u
		ORDER BY u.created_at, u.id`

	queryListRoles = `
		SELECT name FROM roles ORDER BY name`

	queryRoleExists = `
		SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1)`

	queryCountInRole = `
		SELECT COUNT(*)
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE r.name = $1`

	queryTouchUser = `
		UPDATE users SET updated_at = NOW() WHERE email = $1`

	queryLockUserRow = `
		SELECT id FROM users WHERE email = $1 FOR UPDATE`
)

// FindByEmail returns the account with the given normalized email.
func (store *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return findByEmail(ctx, store.pool, email)
}

func findByEmail(ctx context.Context, q querier, email string) (*User, error) {
	user := &User{}
	err := q.QueryRow(ctx, queryFindUserByEmail, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.EmailConfirmed,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	if user.Roles, err = loadRoles(ctx, q, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func loadRoles(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.Query(ctx, queryUserRoles, userID)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, dberr.Wrap(err)
		}
		roles = append(roles, role)
	}
	return roles, dberr.Wrap(rows.Err())
}

// Create persists a brand-new user account with its initial role set.
func (store *PostgresStore) Create(ctx context.Context, user *User) error {
	return create(ctx, store.pool, user)
}

func create(ctx context.Context, q querier, user *User) error {
	err := q.QueryRow(ctx, queryInsertUser,
		user.ID, user.Email, user.PasswordHash, user.EmailConfirmed,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err)
	}
	for _, role := range user.Roles {
		if _, err := q.Exec(ctx, queryInsertUserRole, user.ID, role); err != nil {
			return dberr.Wrap(err)
		}
	}
	return nil
}

// AddRole grants a role to the user. Re-granting a held role is a no-op.
func (store *PostgresStore) AddRole(ctx context.Context, email, role string) error {
	return addRole(ctx, store.pool, email, role)
}

func addRole(ctx context.Context, q querier, email, role string) error {
	user, err := findByEmail(ctx, q, email)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, queryInsertUserRole, user.ID, role); err != nil {
		return dberr.Wrap(err)
	}
	if _, err := q.Exec(ctx, queryTouchUser, email); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// RemoveRole revokes a role from the user.
func (store *PostgresStore) RemoveRole(ctx context.Context, email, role string) error {
	return removeRole(ctx, store.pool, email, role)
}

func removeRole(ctx context.Context, q querier, email, role string) error {
	if _, err := q.Exec(ctx, queryDeleteUserRole, email, role); err != nil {
		return dberr.Wrap(err)
	}
	if _, err := q.Exec(ctx, queryTouchUser, email); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// Delete permanently removes the account. Role memberships cascade.
func (store *PostgresStore) Delete(ctx context.Context, email string) error {
	return deleteUser(ctx, store.pool, email)
}

func deleteUser(ctx context.Context, q querier, email string) error {
	tag, err := q.Exec(ctx, queryDeleteUser, email)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("User %s not found", email))
	}
	return nil
}

// ListUsers returns every account ordered by creation time.
func (store *PostgresStore) ListUsers(ctx context.Context) ([]*User, error) {
	return listUsers(ctx, store.pool)
}

func listUsers(ctx context.Context, q querier) ([]*User, error) {
	rows, err := q.Query(ctx, queryListUsers)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		user := &User{}
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.EmailConfirmed,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err)
	}
	// Hydrate role sets after the user cursor is fully drained; pgx allows
	// only one open cursor per connection.
	for _, user := range users {
		if user.Roles, err = loadRoles(ctx, q, user.ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// ListRoles returns the names of all provisioned roles.
func (store *PostgresStore) ListRoles(ctx context.Context) ([]string, error) {
	return listRoles(ctx, store.pool)
}

func listRoles(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.Query(ctx, queryListRoles)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, dberr.Wrap(err)
		}
		roles = append(roles, role)
	}
	return roles, dberr.Wrap(rows.Err())
}

// RoleExists reports whether a role name is provisioned.
func (store *PostgresStore) RoleExists(ctx context.Context, role string) (bool, error) {
	return roleExists(ctx, store.pool, role)
}

func roleExists(ctx context.Context, q querier, role string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, queryRoleExists, role).Scan(&exists); err != nil {
		return false, dberr.Wrap(err)
	}
	return exists, nil
}

// CountInRole returns the number of users currently holding the role.
func (store *PostgresStore) CountInRole(ctx context.Context, role string) (int, error) {
	return countInRole(ctx, store.pool, role)
}

func countInRole(ctx context.Context, q querier, role string) (int, error) {
	var count int
	if err := q.QueryRow(ctx, queryCountInRole, role).Scan(&count); err != nil {
		return 0, dberr.Wrap(err)
	}
	return count, nil
}

// WithUserLock runs fn inside a transaction that holds a row-level lock on
// the user, serializing concurrent check-then-mutate sequences.
func (store *PostgresStore) WithUserLock(ctx context.Context, email string, fn func(store Store) error) error {
	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// SELECT ... FOR UPDATE blocks until any competing mutation of the same
	// user row commits or rolls back. A missing row locks nothing, which is
	// fine: fn surfaces NotFound itself.
	var id string
	err = tx.QueryRow(ctx, queryLockUserRow, email).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return dberr.Wrap(err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// txStore is the transaction-scoped [Store] handed to WithUserLock callbacks.
type txStore struct {
	tx pgx.Tx
}

func (s *txStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return findByEmail(ctx, s.tx, email)
}

func (s *txStore) Create(ctx context.Context, user *User) error {
	return create(ctx, s.tx, user)
}

func (s *txStore) AddRole(ctx context.Context, email, role string) error {
	return addRole(ctx, s.tx, email, role)
}

func (s *txStore) RemoveRole(ctx context.Context, email, role string) error {
	return removeRole(ctx, s.tx, email, role)
}

func (s *txStore) Delete(ctx context.Context, email string) error {
	return deleteUser(ctx, s.tx, email)
}

func (s *txStore) ListUsers(ctx context.Context) ([]*User, error) {
	return listUsers(ctx, s.tx)
}

func (s *txStore) ListRoles(ctx context.Context) ([]string, error) {
	return listRoles(ctx, s.tx)
}

func (s *txStore) RoleExists(ctx context.Context, role string) (bool, error) {
	return roleExists(ctx, s.tx, role)
}

func (s *txStore) CountInRole(ctx context.Context, role string) (int, error) {
	return countInRole(ctx, s.tx, role)
}

func (s *txStore) WithUserLock(ctx context.Context, email string, fn func(store Store) error) error {
	// Already inside the transaction; take the nested row lock and run fn.
	var id string
	err := s.tx.QueryRow(ctx, queryLockUserRow, email).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return dberr.Wrap(err)
	}
	return fn(s)
}
