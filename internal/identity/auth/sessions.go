// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/sec"
)

// # Session Lifecycle

// SessionService owns the server-side session lifecycle: creation, per-request
// validation with sliding extension, and invalidation.
type SessionService struct {
	sessions SessionStore
	accounts AccountStore
	audit    audit.Emitter
	now      func() time.Time
}

// SessionOption customizes a [SessionService].
type SessionOption func(*SessionService)

// WithSessionClock overrides the time source (test hook).
func WithSessionClock(now func() time.Time) SessionOption {
	return func(service *SessionService) { service.now = now }
}

// NewSessionService constructs a [SessionService].
func NewSessionService(sessions SessionStore, accounts AccountStore, emitter audit.Emitter, options ...SessionOption) *SessionService {
	service := &SessionService{
		sessions: sessions,
		accounts: accounts,
		audit:    emitter,
		now:      time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

/*
Create establishes a new session for an authenticated account.

Description: Generates an opaque 256-bit identifier and snapshots the identity
attributes the middleware needs per request. mfaVerified=false produces a
restricted session that can only reach the MFA verification endpoint.

Parameters:
  - context: context.Context
  - account: *Account
  - mfaVerified: bool

Returns:
  - *Session: The persisted session (ID included)
  - error: Generation or persistence failures
*/
func (service *SessionService) Create(context context.Context, account *Account, mfaVerified bool) (*Session, error) {
	sessionID, err := sec.GenerateSecureToken(SessionIDLength)
	if err != nil {
		return nil, fmt.Errorf("auth_sessions_id_generation_failed: %w", err)
	}

	now := service.now()
	session := &Session{
		ID:             sessionID,
		AccountID:      account.ID,
		Email:          account.Email,
		Role:           account.Role,
		TenantID:       account.Tenant(),
		MFAVerified:    mfaVerified,
		CreatedAt:      now,
		ExpiresAt:      now.Add(SessionMaxAge),
		LastAccessedAt: now,
	}

	if err := service.sessions.Create(context, session); err != nil {
		return nil, fmt.Errorf("auth_sessions_create_failed: %w", err)
	}

	return session, nil
}

/*
Validate resolves a session ID into a live, still-trustworthy session.

Description: Four gates run in order: existence, absolute expiry, idle
timeout, and identity drift. Drift compares the session's role/tenant
snapshot against the live account; any mismatch (or a no-longer-active
account) deletes the session immediately, because authorization derived from
the stale snapshot can no longer be trusted. Passing sessions get their
last-accessed stamp refreshed and a sliding extension when close to expiry.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: The validated session
  - error: apperr.Unauthorized for any invalid session, or internal failures
*/
func (service *SessionService) Validate(context context.Context, sessionID string) (*Session, error) {
	now := service.now()

	session, err := service.sessions.Get(context, sessionID)
	if err != nil {
		return nil, fmt.Errorf("auth_sessions_get_failed: %w", err)
	}
	if session == nil {
		return nil, apperr.Unauthorized("Session is invalid or expired")
	}

	// Absolute expiry.
	if !session.ExpiresAt.After(now) {
		_ = service.sessions.Delete(context, sessionID)
		return nil, apperr.Unauthorized("Session is invalid or expired")
	}

	// Idle timeout.
	if now.Sub(session.LastAccessedAt) >= SessionIdleTimeout {
		_ = service.sessions.Delete(context, sessionID)
		service.audit.Emit(context, audit.Event{
			Type:      audit.EventSessionInvalidated,
			AccountID: session.AccountID,
			Email:     session.Email,
			TenantID:  session.TenantID,
			SessionID: sessionID,
			Reason:    "idle_timeout",
			At:        now,
		})
		return nil, apperr.Unauthorized("Session is invalid or expired")
	}

	// Identity drift: the snapshot must still match the live account.
	account, err := service.accounts.FindByID(context, session.AccountID)
	if err != nil || !account.Status.IsActive() ||
		account.Role != session.Role || account.Tenant() != session.TenantID {

		_ = service.sessions.Delete(context, sessionID)
		service.audit.Emit(context, audit.Event{
			Type:      audit.EventSessionInvalidated,
			AccountID: session.AccountID,
			Email:     session.Email,
			TenantID:  session.TenantID,
			SessionID: sessionID,
			Reason:    "role_or_store_changed",
			At:        now,
		})
		return nil, apperr.Unauthorized("Session is invalid or expired")
	}

	if err := service.sessions.Touch(context, session.AccountID, sessionID, now); err != nil {
		return nil, fmt.Errorf("auth_sessions_touch_failed: %w", err)
	}
	session.LastAccessedAt = now

	// Sliding extension: active use near expiry opens a fresh window.
	if session.ExpiresAt.Sub(now) < SessionRefreshThreshold {
		newExpiry := now.Add(SessionMaxAge)
		extended, err := service.sessions.ExtendExpiry(context, sessionID, newExpiry)
		if err != nil {
			return nil, fmt.Errorf("auth_sessions_extend_failed: %w", err)
		}
		if extended {
			session.ExpiresAt = newExpiry
			service.audit.Emit(context, audit.Event{
				Type:      audit.EventSessionExtended,
				AccountID: session.AccountID,
				Email:     session.Email,
				TenantID:  session.TenantID,
				SessionID: sessionID,
				At:        now,
			})
		}
	}

	return session, nil
}

/*
Verify adapts [Validate] to the middleware's SessionVerifier contract.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *sec.Principal: Request-scoped identity
  - error: apperr.Unauthorized or internal failures
*/
func (service *SessionService) Verify(context context.Context, sessionID string) (*sec.Principal, error) {
	session, err := service.Validate(context, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Principal(), nil
}

/*
MarkMFAVerified upgrades a restricted session after MFA completion.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - bool: Whether the session still existed
  - error: Persistence failures
*/
func (service *SessionService) MarkMFAVerified(context context.Context, sessionID string) (bool, error) {
	updated, err := service.sessions.SetMFAVerified(context, sessionID)
	if err != nil {
		return false, fmt.Errorf("auth_sessions_mark_mfa_failed: %w", err)
	}
	return updated, nil
}

/*
Delete terminates a single session (logout).

Parameters:
  - context: context.Context
  - session: *Session (or principal-derived stub with ID and account fields)

Returns:
  - error: Deletion failures
*/
func (service *SessionService) Delete(context context.Context, session *Session) error {
	if err := service.sessions.Delete(context, session.ID); err != nil {
		return fmt.Errorf("auth_sessions_delete_failed: %w", err)
	}

	service.audit.Emit(context, audit.Event{
		Type:      audit.EventLogout,
		AccountID: session.AccountID,
		Email:     session.Email,
		TenantID:  session.TenantID,
		SessionID: session.ID,
		At:        service.now(),
	})

	return nil
}

/*
DeleteAll terminates every session belonging to the account.

Parameters:
  - context: context.Context
  - accountID: string
  - reason: string (audit vocabulary)

Returns:
  - int: Number of sessions removed
  - error: Deletion failures
*/
func (service *SessionService) DeleteAll(context context.Context, accountID, reason string) (int, error) {
	removed, err := service.sessions.DeleteAll(context, accountID)
	if err != nil {
		return removed, fmt.Errorf("auth_sessions_delete_all_failed: %w", err)
	}

	service.audit.Emit(context, audit.Event{
		Type:      audit.EventSessionInvalidated,
		AccountID: accountID,
		Reason:    reason,
		At:        service.now(),
	})

	return removed, nil
}

/*
DeleteOthers terminates all of the account's sessions except the current one.

Parameters:
  - context: context.Context
  - accountID: string
  - keepSessionID: string
  - reason: string (audit vocabulary)

Returns:
  - int: Number of sessions removed
  - error: Deletion failures
*/
func (service *SessionService) DeleteOthers(context context.Context, accountID, keepSessionID, reason string) (int, error) {
	removed, err := service.sessions.DeleteOthers(context, accountID, keepSessionID)
	if err != nil {
		return removed, fmt.Errorf("auth_sessions_delete_others_failed: %w", err)
	}

	if removed > 0 {
		service.audit.Emit(context, audit.Event{
			Type:      audit.EventSessionInvalidated,
			AccountID: accountID,
			SessionID: keepSessionID,
			Reason:    reason,
			At:        service.now(),
		})
	}

	return removed, nil
}
