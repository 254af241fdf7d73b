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
)

// # Password Recovery

// PasswordResetFlow implements the forgot-password lifecycle.
type PasswordResetFlow struct {
	accounts AccountStore
	history  *PasswordHistoryGuard
	sessions *SessionService
	notify   notify.Dispatcher
	audit    audit.Emitter
	now      func() time.Time
}

// ResetOption customizes a [PasswordResetFlow].
type ResetOption func(*PasswordResetFlow)

// WithResetClock overrides the time source (test hook).
func WithResetClock(now func() time.Time) ResetOption {
	return func(flow *PasswordResetFlow) { flow.now = now }
}

// NewPasswordResetFlow constructs a [PasswordResetFlow].
func NewPasswordResetFlow(
	accounts AccountStore,
	history *PasswordHistoryGuard,
	sessions *SessionService,
	dispatcher notify.Dispatcher,
	emitter audit.Emitter,
	options ...ResetOption,
) *PasswordResetFlow {
	flow := &PasswordResetFlow{
		accounts: accounts,
		history:  history,
		sessions: sessions,
		notify:   dispatcher,
		audit:    emitter,
		now:      time.Now,
	}
	for _, option := range options {
		option(flow)
	}
	return flow
}

/*
Request initiates the forgot-password flow for an email address.

Description: Succeeds silently whether or not the email maps to an account,
so the endpoint cannot be used for enumeration. A new token replaces any
outstanding one; delivery is best-effort.

Parameters:
  - context: context.Context
  - email: string (raw, normalized here)
  - ip: string

Returns:
  - error: Internal failures only (never "account not found")
*/
func (flow *PasswordResetFlow) Request(context context.Context, email, ip string) error {
	normalized := validate.NormalizeEmail(email)
	now := flow.now()

	account, err := flow.accounts.FindByEmail(context, normalized)
	if err != nil {
		if !apperr.IsNotFound(err) {
			return fmt.Errorf("auth_reset_lookup_failed: %w", err)
		}
		// Unknown email: same outcome as success, nothing to do.
		return nil
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return fmt.Errorf("auth_reset_token_generation_failed: %w", err)
	}

	// Only the digest is persisted; a database leak must not expose live
	// recovery tokens. The plaintext travels solely in the email.
	if err := flow.accounts.SetResetToken(context, account.ID, sec.HashToken(token), now.Add(ResetTokenTTL)); err != nil {
		return err
	}

	flow.audit.Emit(context, audit.Event{
		Type:      audit.EventPasswordResetRequested,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		At:        now,
	})

	// Best-effort delivery: a failing mail provider must not reveal whether
	// the account exists.
	_ = flow.notify.SendPasswordResetEmail(context, account.Email, token)

	return nil
}

/*
ValidateToken checks whether a reset token is currently redeemable.

Description: Read-only preflight for the reset form; it does not consume
the token.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: InvalidOrExpiredToken, or internal failures
*/
func (flow *PasswordResetFlow) ValidateToken(context context.Context, token string) error {
	if _, err := flow.accounts.FindByResetToken(context, sec.HashToken(token)); err != nil {
		if !apperr.IsNotFound(err) {
			return fmt.Errorf("auth_reset_validate_lookup_failed: %w", err)
		}
		return apperr.InvalidOrExpiredToken()
	}
	return nil
}

/*
Reset completes the forgot-password flow.

Description: Ordering matters. The reuse check runs before consumption so a
PASSWORD_REUSED rejection leaves the token intact and the user can retry with
a different password. Consumption itself is a single conditional update;
losing the race (token already spent or expired mid-flight) reports
InvalidOrExpiredToken. Success revokes every session and notifies the owner.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string
  - ip: string

Returns:
  - error: InvalidOrExpiredToken, PasswordReused, or internal failures
*/
func (flow *PasswordResetFlow) Reset(context context.Context, token, newPassword, ip string) error {
	now := flow.now()

	tokenDigest := sec.HashToken(token)

	account, err := flow.accounts.FindByResetToken(context, tokenDigest)
	if err != nil {
		if !apperr.IsNotFound(err) {
			return fmt.Errorf("auth_reset_reset_lookup_failed: %w", err)
		}
		return apperr.InvalidOrExpiredToken()
	}

	// Reuse gate first: rejection must not burn the token.
	reused, err := flow.history.WasRecentlyUsed(context, account.ID, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return apperr.PasswordReused()
	}

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_reset_hash_failed: %w", err)
	}

	accountID, consumed, err := flow.accounts.ConsumeResetToken(context, tokenDigest, newHash)
	if err != nil {
		return err
	}
	if !consumed {
		return apperr.InvalidOrExpiredToken()
	}

	if err := flow.history.Record(context, accountID, newHash); err != nil {
		return err
	}

	// Every session dies: whoever held the reset token now owns the account.
	if _, err := flow.sessions.DeleteAll(context, accountID, "password_reset"); err != nil {
		return err
	}

	flow.audit.Emit(context, audit.Event{
		Type:      audit.EventPasswordResetCompleted,
		AccountID: accountID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		At:        now,
	})

	_ = flow.notify.SendPasswordChangedNotice(context, account.Email)

	return nil
}
