// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/vendora/internal/platform/dberr"
	"github.com/vendora/vendora/pkg/uuidv7"
)

// # Account Repository
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types via [dberr.Wrap] to avoid leaking storage details.

// PostgresAccountStore implements the AccountStore interface using pgx.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new PostgreSQL implementation of the AccountStore.
func NewAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

// accountColumns is the canonical SELECT list shared by all account lookups.
const accountColumns = `
	id, email, passwordhash, role, tenantid, status,
	failedloginattempts, lockeduntil,
	mfaenabled, mfasecret,
	emailverified, verificationtoken, verificationexpires,
	resettoken, resetexpires,
	lastloginat, createdat, updatedat`

// scanAccount hydrates one account row from any of the shared SELECT queries.
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.TenantID,
		&account.Status,
		&account.FailedLoginAttempts,
		&account.LockedUntil,
		&account.MFAEnabled,
		&account.MFASecret,
		&account.EmailVerified,
		&account.VerificationToken,
		&account.VerificationExpires,
		&account.ResetToken,
		&account.ResetExpires,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

/*
Create persists a new account record into the identity.account table.

Description: Deep-persists the security entity, ensuring timestamps are
initialized if not provided. Duplicate emails surface as a client-safe
Conflict via the unique constraint.

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - error: apperr.Conflict on duplicate email, or connectivity errors
*/
func (repository *PostgresAccountStore) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO identity.account (
			id, email, passwordhash, role, tenantid, status,
			mfaenabled, emailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.TenantID,
		account.Status,
		account.MFAEnabled,
		account.EmailVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "Account")
	}

	return nil
}

/*
FindByID retrieves an account record by its unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresAccountStore) FindByID(context context.Context, id string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM identity.account WHERE id = $1`

	account, err := scanAccount(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.Wrap(err, "Account")
		}
		return nil, fmt.Errorf("postgres_account_store_find_by_id_failed: %w", err)
	}

	return account, nil
}

/*
FindByEmail retrieves an account record by its unique normalized email.

Parameters:
  - context: context.Context
  - email: string (already normalized by the caller)

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountStore) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM identity.account WHERE email = $1`

	account, err := scanAccount(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.Wrap(err, "Account")
		}
		return nil, fmt.Errorf("postgres_account_store_find_by_email_failed: %w", err)
	}

	return account, nil
}

/*
FindByResetToken retrieves the account holding an unexpired reset token.

Description: The expiry predicate lives in the query so an expired token is
indistinguishable from an unknown one.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountStore) FindByResetToken(context context.Context, token string) (*Account, error) {
	const query = `SELECT ` + accountColumns + `
		FROM identity.account
		WHERE resettoken = $1 AND resetexpires > NOW()`

	account, err := scanAccount(repository.pool.QueryRow(context, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.Wrap(err, "Account")
		}
		return nil, fmt.Errorf("postgres_account_store_find_by_reset_token_failed: %w", err)
	}

	return account, nil
}

/*
UpdatePassword updates only the password hash for a specific account.

Parameters:
  - context: context.Context
  - accountID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountStore) UpdatePassword(context context.Context, accountID, newHash string) error {
	const query = `
		UPDATE identity.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_store_update_password_failed: %w", err)
	}

	return nil
}

/*
RecordFailedAttempt atomically increments the failure counter and locks the
account when the threshold is reached.

Description: The increment and the conditional lock are a single UPDATE, so
two concurrent failures can never both observe "4" and leave the counter at 5
without a lock. RETURNING feeds the post-increment state back without a
second round trip.

Parameters:
  - context: context.Context
  - accountID: string
  - maxAttempts: int
  - lockFor: time.Duration

Returns:
  - int: Counter value after the increment
  - *time.Time: Lockout deadline if one is now active, nil otherwise
  - error: Execution errors
*/
func (repository *PostgresAccountStore) RecordFailedAttempt(context context.Context, accountID string, maxAttempts int, lockFor time.Duration) (int, *time.Time, error) {
	const query = `
		UPDATE identity.account
		SET failedloginattempts = failedloginattempts + 1,
		    lockeduntil = CASE
		        WHEN failedloginattempts + 1 >= $2 THEN NOW() + $3::interval
		        ELSE lockeduntil
		    END,
		    updatedat = NOW()
		WHERE id = $1
		RETURNING failedloginattempts, lockeduntil`

	interval := fmt.Sprintf("%d milliseconds", lockFor.Milliseconds())

	var attempts int
	var lockedUntil *time.Time
	err := repository.pool.QueryRow(context, query, accountID, maxAttempts, interval).Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, fmt.Errorf("postgres_account_store_record_failed_attempt_failed: %w", err)
	}

	return attempts, lockedUntil, nil
}

/*
ResetLockout clears the failure counter and lockout deadline after a
successful authentication, stamping the login time.

Parameters:
  - context: context.Context
  - accountID: string
  - loginAt: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountStore) ResetLockout(context context.Context, accountID string, loginAt time.Time) error {
	const query = `
		UPDATE identity.account
		SET failedloginattempts = 0, lockeduntil = NULL, lastloginat = $2, updatedat = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, loginAt)
	if err != nil {
		return fmt.Errorf("postgres_account_store_reset_lockout_failed: %w", err)
	}

	return nil
}

/*
SetResetToken stores a password reset token, replacing any outstanding one.

Parameters:
  - context: context.Context
  - accountID: string
  - token: string
  - expiresAt: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountStore) SetResetToken(context context.Context, accountID, token string, expiresAt time.Time) error {
	const query = `
		UPDATE identity.account
		SET resettoken = $2, resetexpires = $3, updatedat = NOW()
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres_account_store_set_reset_token_failed: %w", err)
	}

	return nil
}

/*
ConsumeResetToken atomically completes a password reset.

Description: Check-and-clear in one conditional UPDATE. The WHERE clause
re-validates token presence and expiry, so of any number of concurrent resets
with the same token exactly one sees rows-affected = 1.

Parameters:
  - context: context.Context
  - token: string
  - newHash: string

Returns:
  - string: AccountID of the updated row
  - bool: Whether the token was valid and is now consumed
  - error: Execution errors
*/
func (repository *PostgresAccountStore) ConsumeResetToken(context context.Context, token, newHash string) (string, bool, error) {
	const query = `
		UPDATE identity.account
		SET passwordhash = $2,
		    resettoken = NULL,
		    resetexpires = NULL,
		    failedloginattempts = 0,
		    lockeduntil = NULL,
		    updatedat = NOW()
		WHERE resettoken = $1 AND resetexpires > NOW()
		RETURNING id`

	var accountID string
	err := repository.pool.QueryRow(context, query, token, newHash).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres_account_store_consume_reset_token_failed: %w", err)
	}

	return accountID, true, nil
}

/*
SetMFASecret stores the encrypted TOTP seed without enabling MFA.

Description: Re-enrollment before verification simply overwrites the pending
seed; mfaenabled stays untouched until setup is verified.

Parameters:
  - context: context.Context
  - accountID: string
  - encryptedSecret: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountStore) SetMFASecret(context context.Context, accountID, encryptedSecret string) error {
	const query = `
		UPDATE identity.account
		SET mfasecret = $2, updatedat = NOW()
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, encryptedSecret)
	if err != nil {
		return fmt.Errorf("postgres_account_store_set_mfa_secret_failed: %w", err)
	}

	return nil
}

/*
EnableMFA flips the account to MFA-required after setup verification.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountStore) EnableMFA(context context.Context, accountID string) error {
	const query = `
		UPDATE identity.account
		SET mfaenabled = TRUE, updatedat = NOW()
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID)
	if err != nil {
		return fmt.Errorf("postgres_account_store_enable_mfa_failed: %w", err)
	}

	return nil
}

/*
SetVerificationToken stores a new email verification token.

Parameters:
  - context: context.Context
  - accountID: string
  - token: string
  - expiresAt: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountStore) SetVerificationToken(context context.Context, accountID, token string, expiresAt time.Time) error {
	const query = `
		UPDATE identity.account
		SET verificationtoken = $2, verificationexpires = $3, updatedat = NOW()
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres_account_store_set_verification_token_failed: %w", err)
	}

	return nil
}

/*
ConsumeVerificationToken atomically marks the email verified and clears the token.

Description: Same check-and-clear shape as [ConsumeResetToken]; a token can
verify an email exactly once.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - string: AccountID of the verified row
  - bool: Whether the token was valid and is now consumed
  - error: Execution errors
*/
func (repository *PostgresAccountStore) ConsumeVerificationToken(context context.Context, token string) (string, bool, error) {
	const query = `
		UPDATE identity.account
		SET emailverified = TRUE,
		    verificationtoken = NULL,
		    verificationexpires = NULL,
		    updatedat = NOW()
		WHERE verificationtoken = $1 AND verificationexpires > NOW()
		RETURNING id`

	var accountID string
	err := repository.pool.QueryRow(context, query, token).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres_account_store_consume_verification_token_failed: %w", err)
	}

	return accountID, true, nil
}

// # Password History Repository

// PostgresPasswordHistoryStore implements PasswordHistoryStore using pgx.
type PostgresPasswordHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPasswordHistoryStore creates a new PostgreSQL PasswordHistoryStore.
func NewPasswordHistoryStore(pool *pgxpool.Pool) *PostgresPasswordHistoryStore {
	return &PostgresPasswordHistoryStore{pool: pool}
}

/*
Append records a retired hash into the account's history.

Parameters:
  - context: context.Context
  - accountID: string
  - passwordHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresPasswordHistoryStore) Append(context context.Context, accountID, passwordHash string) error {
	const query = `
		INSERT INTO identity.password_history (id, accountid, passwordhash, createdat)
		VALUES ($1, $2, $3, NOW())`

	_, err := repository.pool.Exec(context, query, uuidv7.New(), accountID, passwordHash)
	if err != nil {
		return fmt.Errorf("postgres_password_history_store_append_failed: %w", err)
	}

	return nil
}

/*
Recent returns up to limit history entries, newest first.

Parameters:
  - context: context.Context
  - accountID: string
  - limit: int

Returns:
  - []PasswordHistoryEntry: Newest-first slice
  - error: Retrieval failures
*/
func (repository *PostgresPasswordHistoryStore) Recent(context context.Context, accountID string, limit int) ([]PasswordHistoryEntry, error) {
	const query = `
		SELECT id, accountid, passwordhash, createdat
		FROM identity.password_history
		WHERE accountid = $1
		ORDER BY createdat DESC
		LIMIT $2`

	rows, err := repository.pool.Query(context, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_password_history_store_recent_failed: %w", err)
	}
	defer rows.Close()

	entries := make([]PasswordHistoryEntry, 0, limit)
	for rows.Next() {
		var entry PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_password_history_store_scan_failed: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_password_history_store_rows_failed: %w", err)
	}

	return entries, nil
}

/*
Prune deletes all but the keep newest entries for the account.

Parameters:
  - context: context.Context
  - accountID: string
  - keep: int

Returns:
  - error: Cleanup failures
*/
func (repository *PostgresPasswordHistoryStore) Prune(context context.Context, accountID string, keep int) error {
	const query = `
		DELETE FROM identity.password_history
		WHERE accountid = $1 AND id NOT IN (
			SELECT id FROM identity.password_history
			WHERE accountid = $1
			ORDER BY createdat DESC
			LIMIT $2
		)`

	_, err := repository.pool.Exec(context, query, accountID, keep)
	if err != nil {
		return fmt.Errorf("postgres_password_history_store_prune_failed: %w", err)
	}

	return nil
}

// # Backup Code Repository

// PostgresBackupCodeStore implements BackupCodeStore using pgx.
type PostgresBackupCodeStore struct {
	pool *pgxpool.Pool
}

// NewBackupCodeStore creates a new PostgreSQL BackupCodeStore.
func NewBackupCodeStore(pool *pgxpool.Pool) *PostgresBackupCodeStore {
	return &PostgresBackupCodeStore{pool: pool}
}

/*
Replace deletes the account's existing batch and inserts a new one.

Description: Runs in a transaction so a failed insert can never leave the
account with a partially regenerated batch.

Parameters:
  - context: context.Context
  - accountID: string
  - codes: []BackupCode

Returns:
  - error: Transactional failures
*/
func (repository *PostgresBackupCodeStore) Replace(context context.Context, accountID string, codes []BackupCode) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_backup_code_store_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	if _, err := transaction.Exec(context, "DELETE FROM identity.backup_code WHERE accountid = $1", accountID); err != nil {
		return fmt.Errorf("postgres_backup_code_store_clear_failed: %w", err)
	}

	const insert = `
		INSERT INTO identity.backup_code (id, accountid, codehash, used, createdat)
		VALUES ($1, $2, $3, FALSE, NOW())`

	for _, code := range codes {
		if _, err := transaction.Exec(context, insert, code.ID, accountID, code.CodeHash); err != nil {
			return fmt.Errorf("postgres_backup_code_store_insert_failed: %w", err)
		}
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_backup_code_store_commit_failed: %w", err)
	}

	return nil
}

/*
Unused returns the account's not-yet-consumed codes.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - []BackupCode: Unused codes (hashes only)
  - error: Retrieval failures
*/
func (repository *PostgresBackupCodeStore) Unused(context context.Context, accountID string) ([]BackupCode, error) {
	const query = `
		SELECT id, accountid, codehash, used, usedat, createdat
		FROM identity.backup_code
		WHERE accountid = $1 AND used = FALSE`

	rows, err := repository.pool.Query(context, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres_backup_code_store_unused_failed: %w", err)
	}
	defer rows.Close()

	codes := make([]BackupCode, 0, BackupCodeCount)
	for rows.Next() {
		var code BackupCode
		if err := rows.Scan(&code.ID, &code.AccountID, &code.CodeHash, &code.Used, &code.UsedAt, &code.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_backup_code_store_scan_failed: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_backup_code_store_rows_failed: %w", err)
	}

	return codes, nil
}

/*
Consume atomically marks one code as used.

Description: The used = FALSE predicate makes the update a compare-and-set;
two logins racing on the same code see exactly one rows-affected = 1.

Parameters:
  - context: context.Context
  - codeID: string
  - usedAt: time.Time

Returns:
  - bool: Whether this call performed the consumption
  - error: Execution errors
*/
func (repository *PostgresBackupCodeStore) Consume(context context.Context, codeID string, usedAt time.Time) (bool, error) {
	const query = `
		UPDATE identity.backup_code
		SET used = TRUE, usedat = $2
		WHERE id = $1 AND used = FALSE`

	tag, err := repository.pool.Exec(context, query, codeID, usedAt)
	if err != nil {
		return false, fmt.Errorf("postgres_backup_code_store_consume_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
