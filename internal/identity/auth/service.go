// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/notify"
	"github.com/vendora/vendora/internal/platform/sec"
	"github.com/vendora/vendora/internal/platform/validate"
	"github.com/vendora/vendora/pkg/uuidv7"
)

// # Account Lifecycle

// AccountService orchestrates registration, email verification, and
// authenticated password changes.
type AccountService struct {
	accounts    AccountStore
	history     *PasswordHistoryGuard
	sessions    *SessionService
	credentials *CredentialValidator
	notify      notify.Dispatcher
	audit       audit.Emitter
	now         func() time.Time
}

// AccountOption customizes an [AccountService].
type AccountOption func(*AccountService)

// WithAccountClock overrides the time source (test hook).
func WithAccountClock(now func() time.Time) AccountOption {
	return func(service *AccountService) { service.now = now }
}

// NewAccountService constructs an [AccountService].
func NewAccountService(
	accounts AccountStore,
	history *PasswordHistoryGuard,
	sessions *SessionService,
	credentials *CredentialValidator,
	dispatcher notify.Dispatcher,
	emitter audit.Emitter,
	options ...AccountOption,
) *AccountService {
	service := &AccountService{
		accounts:    accounts,
		history:     history,
		sessions:    sessions,
		credentials: credentials,
		notify:      dispatcher,
		audit:       emitter,
		now:         time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email    string
	Password string
	Role     sec.Role
	TenantID *string
}

/*
Register validates, hashes, and persists a brand new account.

Description: Deep-enrollment of a new identity, seeding the password history
and issuing the email verification token. The duplicate-email check is
advisory; the unique constraint is the real guard and surfaces as the same
Conflict under a race.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Account: Created entity
  - error: Conflict (if email exists) or storage errors
*/
func (service *AccountService) Register(context context.Context, input RegisterInput) (*Account, error) {
	normalized := validate.NormalizeEmail(input.Email)

	// Verify email uniqueness. Return a client-safe Conflict err.
	if _, err := service.accounts.FindByEmail(context, normalized); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	role := input.Role
	if role == "" {
		role = sec.RoleCustomer
	}

	// Construct the new entity. Time-sortable ID to prevent PG index fragmentation.
	account := &Account{
		ID:           uuidv7.New(),
		Email:        normalized,
		PasswordHash: hashedPassword,
		Role:         role,
		TenantID:     input.TenantID,
		Status:       sec.StatusActive,
	}

	if err := service.accounts.Create(context, account); err != nil {
		return nil, err
	}

	// Seed the history so the very first password already counts for reuse.
	if err := service.history.Record(context, account.ID, hashedPassword); err != nil {
		return nil, err
	}

	now := service.now()
	service.audit.Emit(context, audit.Event{
		Type:      audit.EventAccountRegistered,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		At:        now,
	})

	// Issue the verification token as an async-ready side effect. Only the
	// digest is persisted; the plaintext travels solely in the email.
	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err == nil {
		if err := service.accounts.SetVerificationToken(context, account.ID, sec.HashToken(token), now.Add(VerificationTokenTTL)); err == nil {
			_ = service.notify.SendVerificationEmail(context, account.Email, token)
		}
	}

	return account, nil
}

/*
VerifyEmail confirms ownership of an email address using a secure token.

Description: Consumption is a single conditional update; a token verifies an
email exactly once.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: InvalidOrExpiredToken, or storage errors
*/
func (service *AccountService) VerifyEmail(context context.Context, token string) error {
	accountID, consumed, err := service.accounts.ConsumeVerificationToken(context, sec.HashToken(token))
	if err != nil {
		return err
	}
	if !consumed {
		return apperr.InvalidOrExpiredToken()
	}

	service.audit.Emit(context, audit.Event{
		Type:      audit.EventEmailVerified,
		AccountID: accountID,
		At:        service.now(),
	})

	return nil
}

/*
ChangePassword rotates the credentials of an authenticated account.

Description: Confirms the current password (charged against the lockout
counter on failure), enforces the reuse window, updates the hash, records
history, and revokes every other session so stolen cookies die with the old
password.

Parameters:
  - context: context.Context
  - accountID: string
  - currentPassword: string
  - newPassword: string
  - currentSessionID: string
  - ip: string

Returns:
  - error: InvalidPassword, PasswordReused, or storage errors
*/
func (service *AccountService) ChangePassword(context context.Context, accountID, currentPassword, newPassword, currentSessionID, ip string) error {
	account, err := service.credentials.ConfirmPassword(context, accountID, currentPassword, ip)
	if err != nil {
		return err
	}

	reused, err := service.history.WasRecentlyUsed(context, accountID, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return apperr.PasswordReused()
	}

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := service.accounts.UpdatePassword(context, accountID, newHash); err != nil {
		return err
	}

	if err := service.history.Record(context, accountID, newHash); err != nil {
		return err
	}

	// Security side effect: force re-login on every other device.
	if _, err := service.sessions.DeleteOthers(context, accountID, currentSessionID, "password_changed"); err != nil {
		return err
	}

	service.audit.Emit(context, audit.Event{
		Type:      audit.EventPasswordChanged,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		SessionID: currentSessionID,
		IP:        ip,
		At:        service.now(),
	})

	_ = service.notify.SendPasswordChangedNotice(context, account.Email)

	return nil
}
