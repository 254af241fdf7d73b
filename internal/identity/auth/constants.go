// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import "time"

// # Lockout Policy

const (
	// MaxFailedLoginAttempts is the consecutive-failure threshold that locks
	// an account. Password and MFA failures share the same counter.
	MaxFailedLoginAttempts = 5

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 30 * time.Minute
)

// # Session Policy

const (
	// SessionIDLength is the byte length of the opaque session identifier (256 bits).
	SessionIDLength = 32

	// SessionMaxAge is the absolute lifetime of a session from creation.
	SessionMaxAge = 12 * time.Hour

	// SessionIdleTimeout expires sessions not touched for this duration,
	// regardless of remaining absolute lifetime.
	SessionIdleTimeout = 7 * 24 * time.Hour

	// SessionRefreshThreshold triggers a sliding extension: when remaining
	// lifetime drops below it, active use pushes the expiry out again.
	SessionRefreshThreshold = 30 * time.Minute
)

// # Recovery Tokens

const (
	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (1 hour) for security.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationTokenTTL is the duration an email verification token remains valid.
	// Long-lived (24 hours) as users might not check email immediately.
	VerificationTokenTTL = 24 * time.Hour

	// VerificationTokenLength is the byte length of the random verification token.
	VerificationTokenLength = 32
)

// # Password History

const (
	// PasswordHistoryRetention is how many retired hashes are kept per account.
	PasswordHistoryRetention = 10

	// PasswordReuseWindow is how many of the most recent hashes the reuse
	// check compares against.
	PasswordReuseWindow = 5
)

// # Multi-Factor

const (
	// BackupCodeCount is the size of a generated recovery code batch.
	BackupCodeCount = 10

	// BackupCodeBytes is the entropy of one code; hex-encoded to 10 characters.
	BackupCodeBytes = 5

	// TrustedDeviceTTL is how long a "remember this device" grant skips MFA.
	TrustedDeviceTTL = 30 * 24 * time.Hour
)

// # CSRF

const (
	// CSRFTokenTTL is the lifetime of an issued double-submit token.
	CSRFTokenTTL = 24 * time.Hour
)
