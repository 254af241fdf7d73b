// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"time"
)

// # Account Data Access

// AccountStore defines the data access contract for accounts.
//
// Operations that race under concurrent logins (lockout counting, token
// consumption) are specified as single atomic statements: correctness must
// not depend on the caller holding any lock.
//
// Reset and verification token parameters are SHA-256 digests, never the
// mailed plaintext; the store holds nothing a database leak could redeem.
type AccountStore interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		FindByEmail returns the account with the given normalized email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		FindByResetToken returns the account holding an unexpired reset token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByResetToken(context context.Context, token string) (*Account, error)

	/*
		Create persists a brand-new account.

		Parameters:
		  - context: context.Context
		  - account: *Account

		Returns:
		  - error: Conflict on duplicate email, or persistence failures
	*/
	Create(context context.Context, account *Account) error

	/*
		UpdatePassword replaces only the account's password hash.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, accountID, newHash string) error

	/*
		RecordFailedAttempt atomically increments the failure counter and, when
		the counter reaches maxAttempts, sets the lockout deadline in the same
		statement. Concurrent failures may never exceed the threshold without
		locking.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - maxAttempts: int
		  - lockFor: time.Duration

		Returns:
		  - int: Counter value after the increment
		  - *time.Time: Lockout deadline if one was set, nil otherwise
		  - error: Persistence failures
	*/
	RecordFailedAttempt(context context.Context, accountID string, maxAttempts int, lockFor time.Duration) (int, *time.Time, error)

	/*
		ResetLockout zeroes the failure counter, clears any lockout deadline,
		and stamps the successful login time.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - loginAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	ResetLockout(context context.Context, accountID string, loginAt time.Time) error

	/*
		SetResetToken stores a new password reset token, replacing any
		outstanding one.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - token: string
		  - expiresAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	SetResetToken(context context.Context, accountID, token string, expiresAt time.Time) error

	/*
		ConsumeResetToken atomically sets the new password hash and clears the
		reset token, succeeding only if the token is still present and
		unexpired. Exactly one of any number of concurrent calls with the same
		token can succeed.

		Parameters:
		  - context: context.Context
		  - token: string
		  - newHash: string

		Returns:
		  - string: AccountID of the updated row (empty if consumed=false)
		  - bool: Whether the token was valid and is now consumed
		  - error: Persistence failures
	*/
	ConsumeResetToken(context context.Context, token, newHash string) (string, bool, error)

	/*
		SetMFASecret stores the encrypted TOTP seed without enabling MFA.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - encryptedSecret: string

		Returns:
		  - error: Persistence failures
	*/
	SetMFASecret(context context.Context, accountID, encryptedSecret string) error

	/*
		EnableMFA flips the account to MFA-required after setup verification.

		Parameters:
		  - context: context.Context
		  - accountID: string

		Returns:
		  - error: Persistence failures
	*/
	EnableMFA(context context.Context, accountID string) error

	/*
		SetVerificationToken stores a new email verification token.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - token: string
		  - expiresAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	SetVerificationToken(context context.Context, accountID, token string, expiresAt time.Time) error

	/*
		ConsumeVerificationToken atomically marks the email verified and clears
		the token, succeeding only if the token is present and unexpired.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - string: AccountID of the verified row (empty if consumed=false)
		  - bool: Whether the token was valid and is now consumed
		  - error: Persistence failures
	*/
	ConsumeVerificationToken(context context.Context, token string) (string, bool, error)
}

// # Password History Data Access

// PasswordHistoryStore defines the contract for retired password hashes.
type PasswordHistoryStore interface {

	/*
		Append records a hash into the account's history.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - passwordHash: string

		Returns:
		  - error: Persistence failures
	*/
	Append(context context.Context, accountID, passwordHash string) error

	/*
		Recent returns up to limit entries, newest first.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - limit: int

		Returns:
		  - []PasswordHistoryEntry: Newest-first history slice
		  - error: Retrieval failures
	*/
	Recent(context context.Context, accountID string, limit int) ([]PasswordHistoryEntry, error)

	/*
		Prune deletes all but the keep newest entries for the account.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - keep: int

		Returns:
		  - error: Cleanup failures
	*/
	Prune(context context.Context, accountID string, keep int) error
}

// # Backup Code Data Access

// BackupCodeStore defines the contract for single-use MFA recovery codes.
type BackupCodeStore interface {

	/*
		Replace deletes the account's existing batch and inserts a new one.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - codes: []BackupCode

		Returns:
		  - error: Persistence failures
	*/
	Replace(context context.Context, accountID string, codes []BackupCode) error

	/*
		Unused returns the account's not-yet-consumed codes.

		Parameters:
		  - context: context.Context
		  - accountID: string

		Returns:
		  - []BackupCode: Unused codes (hashes only)
		  - error: Retrieval failures
	*/
	Unused(context context.Context, accountID string) ([]BackupCode, error)

	/*
		Consume atomically marks one code as used. The conditional update
		guarantees a code can be spent exactly once under concurrency.

		Parameters:
		  - context: context.Context
		  - codeID: string
		  - usedAt: time.Time

		Returns:
		  - bool: Whether this call performed the consumption
		  - error: Persistence failures
	*/
	Consume(context context.Context, codeID string, usedAt time.Time) (bool, error)
}

// # Session Data Access

// SessionStore defines the contract for the volatile session records.
//
// Implementations keep a per-account index so bulk invalidation (logout-all,
// password reset) needs no full scan.
type SessionStore interface {

	/*
		Create persists a new session under its opaque ID.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		Get returns the session with the given ID, or nil if absent.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Hydrated session, nil when not found
		  - error: Retrieval failures
	*/
	Get(context context.Context, sessionID string) (*Session, error)

	/*
		Touch updates the session's last-accessed timestamp and re-arms the
		account's session index, so the index always outlives any session that
		is still receiving traffic.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - sessionID: string
		  - accessedAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	Touch(context context.Context, accountID, sessionID string, accessedAt time.Time) error

	/*
		ExtendExpiry pushes the session's expiry out, only if it still exists.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - expiresAt: time.Time

		Returns:
		  - bool: Whether the session existed and was extended
		  - error: Persistence failures
	*/
	ExtendExpiry(context context.Context, sessionID string, expiresAt time.Time) (bool, error)

	/*
		SetMFAVerified flips the session's MFA flag, only if it still exists.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - bool: Whether the session existed and was updated
		  - error: Persistence failures
	*/
	SetMFAVerified(context context.Context, sessionID string) (bool, error)

	/*
		Delete removes a single session.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Deletion failures
	*/
	Delete(context context.Context, sessionID string) error

	/*
		DeleteAll removes every session belonging to the account.

		Parameters:
		  - context: context.Context
		  - accountID: string

		Returns:
		  - int: Number of sessions removed
		  - error: Deletion failures
	*/
	DeleteAll(context context.Context, accountID string) (int, error)

	/*
		DeleteOthers removes all of the account's sessions except one.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - keepSessionID: string

		Returns:
		  - int: Number of sessions removed
		  - error: Deletion failures
	*/
	DeleteOthers(context context.Context, accountID, keepSessionID string) (int, error)
}
