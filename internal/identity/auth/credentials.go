// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/sec"
	"github.com/vendora/vendora/internal/platform/validate"
)

// # Credential Validation
//
// This component is critical for security. Any changes to the lockout or
// enumeration-parity logic must be reviewed by the security team.

// CredentialValidator checks email/password pairs and drives the shared
// failure counter that backs the lockout policy.
type CredentialValidator struct {
	accounts AccountStore
	audit    audit.Emitter
	now      func() time.Time
}

// CredentialOption customizes a [CredentialValidator].
type CredentialOption func(*CredentialValidator)

// WithCredentialClock overrides the time source (test hook).
func WithCredentialClock(now func() time.Time) CredentialOption {
	return func(validator *CredentialValidator) { validator.now = now }
}

// NewCredentialValidator constructs a [CredentialValidator].
func NewCredentialValidator(accounts AccountStore, emitter audit.Emitter, options ...CredentialOption) *CredentialValidator {
	validator := &CredentialValidator{
		accounts: accounts,
		audit:    emitter,
		now:      time.Now,
	}
	for _, option := range options {
		option(validator)
	}
	return validator
}

/*
Validate authenticates an email/password pair, enforcing the lockout policy.

Description: The failure path is ordered so the response never becomes an
oracle: an unknown email still pays for a bcrypt comparison (against a fixed
dummy hash), and returns the same INVALID_CREDENTIALS as a wrong password.
A locked account rejects before the password is checked, so attempts during
lockout never advance the counter.

Parameters:
  - context: context.Context
  - email: string (raw, normalized here)
  - password: string
  - ip: string (client address for the audit trail)

Returns:
  - *Account: The authenticated account
  - error: InvalidCredentials, AccountLocked, AccountNotActive, or internal failures
*/
func (validator *CredentialValidator) Validate(context context.Context, email, password, ip string) (*Account, error) {
	normalized := validate.NormalizeEmail(email)
	now := validator.now()

	account, err := validator.accounts.FindByEmail(context, normalized)
	if err != nil {
		// Only an absent account is folded into the uniform rejection; a
		// storage failure must surface as such, not as bad credentials.
		if !apperr.IsNotFound(err) {
			return nil, fmt.Errorf("auth_credentials_lookup_failed: %w", err)
		}

		// Burn a hash comparison anyway. The result is discarded; only the
		// timing matters.
		_ = sec.CheckPasswordHash(password, sec.DummyPasswordHash)

		validator.audit.Emit(context, audit.Event{
			Type:   audit.EventLoginFailed,
			Email:  normalized,
			IP:     ip,
			Reason: "unknown_email",
			At:     now,
		})
		return nil, apperr.InvalidCredentials()
	}

	// Lockout gate runs before the password check.
	if account.IsLocked(now) {
		validator.audit.Emit(context, audit.Event{
			Type:      audit.EventLoginFailed,
			AccountID: account.ID,
			Email:     account.Email,
			TenantID:  account.Tenant(),
			IP:        ip,
			Reason:    "locked",
			At:        now,
		})
		return nil, apperr.AccountLocked(remainingMinutes(*account.LockedUntil, now))
	}

	// Status gate: suspended/deactivated accounts cannot authenticate even
	// with correct credentials.
	if !account.Status.IsActive() {
		validator.audit.Emit(context, audit.Event{
			Type:      audit.EventLoginFailed,
			AccountID: account.ID,
			Email:     account.Email,
			TenantID:  account.Tenant(),
			IP:        ip,
			Reason:    "status_" + string(account.Status),
			At:        now,
		})
		return nil, apperr.AccountNotActive(string(account.Status))
	}

	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		if err := validator.PenalizeFailure(context, account, ip, "wrong_password"); err != nil {
			return nil, err
		}
		return nil, apperr.InvalidCredentials()
	}

	// Success clears the counter and any expired lockout residue.
	if err := validator.accounts.ResetLockout(context, account.ID, now); err != nil {
		return nil, fmt.Errorf("auth_credentials_reset_lockout_failed: %w", err)
	}
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now

	validator.audit.Emit(context, audit.Event{
		Type:      audit.EventLoginSucceeded,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		At:        now,
	})

	return account, nil
}

/*
PenalizeFailure charges one failed attempt against the account's shared
counter, locking it at the threshold.

Description: Password failures and MFA failures both route here, so an
attacker cannot split attempts across the two factors.

Parameters:
  - context: context.Context
  - account: *Account
  - ip: string
  - reason: string (audit vocabulary, never shown to clients)

Returns:
  - error: Persistence failures
*/
func (validator *CredentialValidator) PenalizeFailure(context context.Context, account *Account, ip, reason string) error {
	now := validator.now()

	attempts, lockedUntil, err := validator.accounts.RecordFailedAttempt(context, account.ID, MaxFailedLoginAttempts, LockoutDuration)
	if err != nil {
		return fmt.Errorf("auth_credentials_record_failure_failed: %w", err)
	}

	validator.audit.Emit(context, audit.Event{
		Type:      audit.EventLoginFailed,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		Reason:    reason,
		At:        now,
	})

	if lockedUntil != nil && lockedUntil.After(now) && attempts >= MaxFailedLoginAttempts {
		validator.audit.Emit(context, audit.Event{
			Type:      audit.EventAccountLocked,
			AccountID: account.ID,
			Email:     account.Email,
			TenantID:  account.Tenant(),
			IP:        ip,
			Reason:    reason,
			At:        now,
		})
	}

	return nil
}

/*
ConfirmPassword re-verifies the password of an already authenticated account.

Description: Used by sensitive operations (backup code regeneration, password
change). Failures are penalized against the shared counter like any other
credential failure.

Parameters:
  - context: context.Context
  - accountID: string
  - password: string
  - ip: string

Returns:
  - *Account: The confirmed account
  - error: InvalidPassword, AccountLocked, or internal failures
*/
func (validator *CredentialValidator) ConfirmPassword(context context.Context, accountID, password, ip string) (*Account, error) {
	now := validator.now()

	account, err := validator.accounts.FindByID(context, accountID)
	if err != nil {
		return nil, err
	}

	if account.IsLocked(now) {
		return nil, apperr.AccountLocked(remainingMinutes(*account.LockedUntil, now))
	}

	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		if err := validator.PenalizeFailure(context, account, ip, "password_confirmation_failed"); err != nil {
			return nil, err
		}
		return nil, apperr.InvalidPassword()
	}

	return account, nil
}

// remainingMinutes converts a lockout deadline into whole minutes, rounded up
// so the client is never told to retry early.
func remainingMinutes(lockedUntil, now time.Time) int {
	remaining := lockedUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}
