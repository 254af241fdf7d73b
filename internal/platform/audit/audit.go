// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

/*
Package audit defines the security event trail for the identity core.

Every security-relevant state transition (login outcomes, lockouts, session
lifecycle, MFA activity, password changes) is emitted as a structured [Event].
Storage of events is an external concern: the core only guarantees that every
transition produces exactly one event.

Architecture:

  - Event: Flat, JSON-serializable record with a closed [EventType] set.
  - Emitter: The sink contract. Emission is fire-and-forget — a failing sink
    must never fail the security operation that triggered it.
  - Sinks: slog (always on) and Kafka (optional, for the SIEM pipeline).
*/
package audit

import (
	"context"
	"log/slog"
	"time"
)

// # Event Taxonomy

// EventType identifies a security-relevant transition.
type EventType string

const (
	EventAccountRegistered      EventType = "account_registered"
	EventLoginSucceeded         EventType = "login_succeeded"
	EventLoginFailed            EventType = "login_failed"
	EventAccountLocked          EventType = "account_locked"
	EventLogout                 EventType = "logout"
	EventSessionExtended        EventType = "session_extended"
	EventSessionInvalidated     EventType = "session_invalidated"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
	EventPasswordChanged        EventType = "password_changed"
	EventEmailVerified          EventType = "email_verified"
	EventMFAEnrolled            EventType = "mfa_enrolled"
	EventMFAEnabled             EventType = "mfa_enabled"
	EventMFAVerified            EventType = "mfa_verified"
	EventMFAFailed              EventType = "mfa_failed"
	EventBackupCodeUsed         EventType = "backup_code_used"
	EventBackupCodesRegenerated EventType = "backup_codes_regenerated"
)

// Event is a single entry in the security trail.
//
// # Privacy
//
// Events never contain secrets: no passwords, no codes, no raw tokens.
// Reason strings are internal vocabulary and are never surfaced to clients.
type Event struct {
	Type      EventType `json:"type"`
	AccountID string    `json:"account_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// # Sink Contract

// Emitter is the sink for security events.
//
// Implementations must be non-blocking from the caller's perspective and must
// swallow their own failures (log them, never return them).
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// # Slog Sink

// SlogEmitter writes events to the structured application log.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an [Emitter] backed by the given logger.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	return &SlogEmitter{logger: logger}
}

// Emit implements [Emitter].
func (emitter *SlogEmitter) Emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	emitter.logger.InfoContext(ctx, "security_event",
		slog.String("event_type", string(event.Type)),
		slog.String("account_id", event.AccountID),
		slog.String("email", event.Email),
		slog.String("tenant_id", event.TenantID),
		slog.String("session_id", event.SessionID),
		slog.String("ip", event.IP),
		slog.String("reason", event.Reason),
		slog.Time("at", event.At),
	)
}

// # Fan-Out

// Fanout forwards every event to all configured sinks.
type Fanout []Emitter

// Emit implements [Emitter].
func (emitters Fanout) Emit(ctx context.Context, event Event) {
	for _, emitter := range emitters {
		emitter.Emit(ctx, event)
	}
}
