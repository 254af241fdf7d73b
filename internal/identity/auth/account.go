// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

/*
Package auth implements the account-security core of the Vendora platform.

It defines the core domain entities (Account, Session, BackupCode) and the
logic for authentication, session lifecycle, password recovery, and
multi-factor verification.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to account identity.
*/
package auth

import (
	"time"

	"github.com/vendora/vendora/internal/platform/sec"
)

// # Domain Entities

// Account represents a registered identity on the Vendora platform.
//
// An account is either platform-scoped (TenantID nil, e.g. super admins) or
// store-scoped (TenantID set). All security state (lockout counters, MFA
// material, recovery tokens) lives on this entity.
type Account struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"-"` // Explicitly omitted from JSON for security.
	Role         sec.Role          `json:"role"`
	TenantID     *string           `json:"tenant_id,omitempty"`
	Status       sec.AccountStatus `json:"status"`

	// Lockout state. FailedLoginAttempts counts consecutive failures and is
	// reset to zero on any successful authentication.
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`

	// Multi-factor state. MFASecret holds the AES-GCM encrypted TOTP seed.
	// A non-nil secret with MFAEnabled=false means enrollment is pending
	// first verification.
	MFAEnabled bool    `json:"mfa_enabled"`
	MFASecret  *string `json:"-"`

	// Email ownership verification state.
	EmailVerified       bool       `json:"email_verified"`
	VerificationToken   *string    `json:"-"`
	VerificationExpires *time.Time `json:"-"`

	// Password recovery state. The token is single-use and cleared atomically
	// on consumption.
	ResetToken   *string    `json:"-"`
	ResetExpires *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsLocked reports whether the account is inside an active lockout window.
func (account *Account) IsLocked(now time.Time) bool {
	return account.LockedUntil != nil && account.LockedUntil.After(now)
}

// Tenant returns the tenant scope as a plain string, empty for platform accounts.
func (account *Account) Tenant() string {
	if account.TenantID == nil {
		return ""
	}
	return *account.TenantID
}

// PasswordHistoryEntry is a retired password hash kept for the reuse check.
type PasswordHistoryEntry struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// BackupCode is a single-use MFA recovery code. Only the bcrypt hash is stored.
type BackupCode struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	CodeHash  string     `json:"-"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Session is a server-side session record backed by Redis.
//
// The ID is an opaque 256-bit random token; nothing about the account can be
// derived from it. Identity attributes are snapshotted at creation and
// re-validated against the live account on every read.
type Session struct {
	ID             string    `json:"-"` // Never serialized into the session payload itself.
	AccountID      string    `json:"account_id"`
	Email          string    `json:"email"`
	Role           sec.Role  `json:"role"`
	TenantID       string    `json:"tenant_id,omitempty"`
	MFAVerified    bool      `json:"mfa_verified"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Principal converts the session snapshot into the request-scoped identity.
func (session *Session) Principal() *sec.Principal {
	return &sec.Principal{
		SessionID:   session.ID,
		AccountID:   session.AccountID,
		Email:       session.Email,
		Role:        session.Role,
		TenantID:    session.TenantID,
		MFAVerified: session.MFAVerified,
	}
}

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldToken           = "token"
	FieldCode            = "code"
	FieldType            = "type"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldRole            = "role"
	FieldTenantID        = "tenant_id"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldMFARequired     = "mfa_required"
	FieldRememberDevice  = "remember_device"
)
