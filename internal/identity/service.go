// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taibuivan/midora/internal/notification"
	"github.com/taibuivan/midora/internal/platform/apperr"
	"github.com/taibuivan/midora/internal/platform/sec"
)

// EventPublisher is the outbound port for account-event notifications.
//
// The concrete implementation lives in internal/messaging; the indirection
// keeps this package broker-agnostic and lets tests capture publishes.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

// Service is the role manager: it owns every mutation of user accounts and
// role memberships and enforces the safety invariants before touching the
// store.
//
// Side-effect policy: account events (welcome, role change, deletion) are
// published after the mutation commits. A publish failure is logged and
// swallowed; identity state is the source of truth and a broker outage must
// not roll back or fail an otherwise successful mutation.
type Service struct {
	store     Store
	publisher EventPublisher
	queue     string
	policy    sec.PasswordPolicy
	logger    *slog.Logger
}

// NewService wires the role manager with its storage, outbound publisher,
// target queue name, and password policy.
func NewService(store Store, publisher EventPublisher, queue string, policy sec.PasswordPolicy, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		queue:     queue,
		policy:    policy,
		logger:    logger,
	}
}

/*
CreateUser registers a new account with the default "user" role.

Description: For local accounts (federated=false) the password is validated
against the policy and bcrypt-hashed; a duplicate email is a Conflict. For
federated accounts the call is find-or-create: an existing account is
returned untouched (roles and all), a new one is created with an empty
password hash and a confirmed email.

Parameters:
  - ctx: context.Context
  - email: string (raw; normalized here)
  - password: string (ignored for federated accounts)
  - federated: bool

Returns:
  - *User: The created or pre-existing account
  - error: apperr.ValidationError, apperr.Conflict, or persistence failures
*/
func (service *Service) CreateUser(ctx context.Context, email, password string, federated bool) (*User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, apperr.ValidationError("Email is required", apperr.FieldError{
			Field:   FieldEmail,
			Message: "must not be empty",
		})
	}

	if existing, err := service.store.FindByEmail(ctx, normalized); err == nil {
		if federated {
			return existing, nil
		}
		return nil, apperr.Conflict(fmt.Sprintf("User %s already exists", normalized))
	} else if apperr.As(err) == nil || apperr.As(err).Code != "NOT_FOUND" {
		return nil, err
	}

	user := &User{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Email:          normalized,
		EmailConfirmed: federated,
		Roles:          []string{RoleUser},
	}

	if !federated {
		if err := service.policy.Validate(password); err != nil {
			return nil, err
		}
		hash, err := sec.HashPassword(password)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		user.PasswordHash = hash
	}

	if err := service.store.Create(ctx, user); err != nil {
		return nil, err
	}

	service.publish(ctx, notification.WelcomeEmail(user.Email))
	return user, nil
}

/*
AddRole grants a role to an existing user.

Description: Granting a role the user already holds succeeds without
side effects (no notification is published for a no-op grant).

Parameters:
  - ctx: context.Context
  - email: string (raw; normalized here)
  - role: string

Returns:
  - *User: The account after the grant
  - error: apperr.NotFound (unknown user or role) or persistence failures
*/
func (service *Service) AddRole(ctx context.Context, email, role string) (*User, error) {
	normalized := NormalizeEmail(email)

	exists, err := service.store.RoleExists(ctx, role)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound(fmt.Sprintf("Role %s not found", role))
	}

	user, err := service.store.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user.HasRole(role) {
		return user, nil
	}

	if err := service.store.AddRole(ctx, normalized, role); err != nil {
		return nil, err
	}
	user.Roles = append(user.Roles, role)

	service.publish(ctx, notification.RoleAssignedEmail(user.Email, role))
	return user, nil
}

/*
RemoveRole revokes a role from an existing user.

Description: Runs under a per-user lock so the invariant checks and the
revocation observe the same state. Refused when the role is not held, when
it is the user's only role, or when it would demote the last administrator.

Parameters:
  - ctx: context.Context
  - email: string (raw; normalized here)
  - role: string

Returns:
  - *User: The account after the revocation
  - error: apperr.NotFound, apperr.InvariantViolation, or persistence failures
*/
func (service *Service) RemoveRole(ctx context.Context, email, role string) (*User, error) {
	normalized := NormalizeEmail(email)

	exists, err := service.store.RoleExists(ctx, role)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound(fmt.Sprintf("Role %s not found", role))
	}

	var updated *User
	err = service.store.WithUserLock(ctx, normalized, func(locked Store) error {
		user, err := locked.FindByEmail(ctx, normalized)
		if err != nil {
			return err
		}
		if !user.HasRole(role) {
			return apperr.InvariantViolation(
				fmt.Sprintf("User %s does not hold role %s", normalized, role),
			)
		}
		if len(user.Roles) == 1 {
			return apperr.InvariantViolation(
				fmt.Sprintf("Cannot remove role %s: it is the user's only role", role),
			)
		}
		if role == RoleAdmin {
			admins, err := locked.CountInRole(ctx, RoleAdmin)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperr.InvariantViolation("Cannot demote the last administrator")
			}
		}
		if err := locked.RemoveRole(ctx, normalized, role); err != nil {
			return err
		}
		updated, err = locked.FindByEmail(ctx, normalized)
		return err
	})
	if err != nil {
		return nil, err
	}

	service.publish(ctx, notification.RoleRemovedEmail(updated.Email, role))
	return updated, nil
}

/*
DeleteUser permanently removes an account.

Description: Runs under a per-user lock. Refused when the account is the
last administrator, since deleting it would empty the admin set.

Parameters:
  - ctx: context.Context
  - email: string (raw; normalized here)

Returns:
  - error: apperr.NotFound, apperr.InvariantViolation, or persistence failures
*/
func (service *Service) DeleteUser(ctx context.Context, email string) error {
	normalized := NormalizeEmail(email)

	err := service.store.WithUserLock(ctx, normalized, func(locked Store) error {
		user, err := locked.FindByEmail(ctx, normalized)
		if err != nil {
			return err
		}
		if user.HasRole(RoleAdmin) {
			admins, err := locked.CountInRole(ctx, RoleAdmin)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperr.InvariantViolation("Cannot delete the last administrator")
			}
		}
		return locked.Delete(ctx, normalized)
	})
	if err != nil {
		return err
	}

	service.publish(ctx, notification.AccountDeletedEmail(normalized))
	return nil
}

// GetByEmail returns the account with the given email.
func (service *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return service.store.FindByEmail(ctx, NormalizeEmail(email))
}

// ListUsers returns every registered account in stable storage order.
func (service *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return service.store.ListUsers(ctx)
}

// ListRoles returns the names of all provisioned roles.
func (service *Service) ListRoles(ctx context.Context) ([]string, error) {
	return service.store.ListRoles(ctx)
}

/*
EnsureAdmin guarantees the administrator set is non-empty from first boot.

Description: Idempotent bootstrap run at startup. Creates the configured
administrator account when absent, or grants it the admin role when the
account exists without it. No notification is published for bootstrap
mutations.

Parameters:
  - ctx: context.Context
  - email: string (raw; normalized here)
  - password: string

Returns:
  - error: Validation or persistence failures
*/
func (service *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	normalized := NormalizeEmail(email)

	user, err := service.store.FindByEmail(ctx, normalized)
	if err != nil {
		if ae := apperr.As(err); ae == nil || ae.Code != "NOT_FOUND" {
			return err
		}

		if err := service.policy.Validate(password); err != nil {
			return err
		}
		hash, err := sec.HashPassword(password)
		if err != nil {
			return apperr.Internal(err)
		}
		admin := &User{
			ID:             uuid.Must(uuid.NewV7()).String(),
			Email:          normalized,
			PasswordHash:   hash,
			EmailConfirmed: true,
			Roles:          []string{RoleAdmin, RoleUser},
		}
		if err := service.store.Create(ctx, admin); err != nil {
			return err
		}
		service.logger.Info("admin_bootstrap_created", slog.String("email", normalized))
		return nil
	}

	if user.HasRole(RoleAdmin) {
		return nil
	}
	if err := service.store.AddRole(ctx, normalized, RoleAdmin); err != nil {
		return err
	}
	service.logger.Info("admin_bootstrap_promoted", slog.String("email", normalized))
	return nil
}

// publish enqueues an account-event email, logging (never propagating)
// broker failures.
func (service *Service) publish(ctx context.Context, message notification.EmailMessage) {
	if service.publisher == nil {
		return
	}
	if err := service.publisher.Publish(ctx, service.queue, message); err != nil {
		service.logger.Error("notification_publish_failed",
			slog.String("queue", service.queue),
			slog.String("to", message.To),
			slog.String("subject", message.Subject),
			slog.Any("error", err),
		)
	}
}
