// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/notify"
	"github.com/vendora/vendora/internal/platform/sec"
	"github.com/vendora/vendora/pkg/uuidv7"
)

// # Multi-Factor Authentication

// MFAManager owns TOTP enrollment, login-time verification, backup codes,
// and trusted-device grants.
//
// TOTP seeds are stored AES-GCM encrypted under a dedicated key; backup codes
// are stored bcrypt-hashed like passwords. Neither ever appears in logs or
// audit events.
type MFAManager struct {
	accounts    AccountStore
	backupCodes BackupCodeStore
	credentials *CredentialValidator
	devices     *sec.DeviceTokenService
	notify      notify.Dispatcher
	audit       audit.Emitter
	cipherKey   []byte
	issuer      string
	now         func() time.Time
}

// MFAOption customizes an [MFAManager].
type MFAOption func(*MFAManager)

// WithMFAClock overrides the time source (test hook).
func WithMFAClock(now func() time.Time) MFAOption {
	return func(manager *MFAManager) { manager.now = now }
}

// NewMFAManager constructs an [MFAManager].
//
// cipherKey must be a 32-byte AES-256 key; issuer is the label shown in
// authenticator apps.
func NewMFAManager(
	accounts AccountStore,
	backupCodes BackupCodeStore,
	credentials *CredentialValidator,
	devices *sec.DeviceTokenService,
	dispatcher notify.Dispatcher,
	emitter audit.Emitter,
	cipherKey []byte,
	issuer string,
	options ...MFAOption,
) *MFAManager {
	manager := &MFAManager{
		accounts:    accounts,
		backupCodes: backupCodes,
		credentials: credentials,
		devices:     devices,
		notify:      dispatcher,
		audit:       emitter,
		cipherKey:   cipherKey,
		issuer:      issuer,
		now:         time.Now,
	}
	for _, option := range options {
		option(manager)
	}
	return manager
}

// Enrollment is the one-time plaintext material returned from [Enroll].
// None of it is recoverable afterwards.
type Enrollment struct {
	Secret      string   `json:"secret"`
	QRCodeURL   string   `json:"qr_code_url"`
	BackupCodes []string `json:"backup_codes"`
}

/*
Enroll starts MFA setup for an account.

Description: Generates a fresh TOTP seed and a batch of backup codes. The
seed is stored encrypted with mfaenabled still false; MFA only becomes
required after [VerifySetup] proves the authenticator was provisioned.
Re-enrolling before verification overwrites the pending seed.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - *Enrollment: Plaintext secret, provisioning URI, and backup codes (shown once)
  - error: Conflict if MFA is already enabled, or internal failures
*/
func (manager *MFAManager) Enroll(context context.Context, accountID string) (*Enrollment, error) {
	account, err := manager.accounts.FindByID(context, accountID)
	if err != nil {
		return nil, err
	}

	if account.MFAEnabled {
		return nil, apperr.Conflict("MFA is already enabled for this account")
	}

	_, secretBase32, err := sec.GenerateTOTPSecret()
	if err != nil {
		return nil, fmt.Errorf("auth_mfa_secret_generation_failed: %w", err)
	}

	encryptedSecret, err := sec.EncryptString(manager.cipherKey, secretBase32)
	if err != nil {
		return nil, fmt.Errorf("auth_mfa_secret_encryption_failed: %w", err)
	}

	if err := manager.accounts.SetMFASecret(context, accountID, encryptedSecret); err != nil {
		return nil, err
	}

	plainCodes, err := manager.replaceBackupCodes(context, accountID)
	if err != nil {
		return nil, err
	}

	manager.audit.Emit(context, audit.Event{
		Type:      audit.EventMFAEnrolled,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		At:        manager.now(),
	})

	return &Enrollment{
		Secret:      secretBase32,
		QRCodeURL:   sec.TOTPProvisionURI(manager.issuer, account.Email, secretBase32),
		BackupCodes: plainCodes,
	}, nil
}

/*
VerifySetup completes enrollment by proving the authenticator works.

Description: A valid code flips the account to MFA-required and notifies the
owner. An invalid code is penalized against the shared lockout counter like
a wrong password.

Parameters:
  - context: context.Context
  - accountID: string
  - code: string (6-digit TOTP)
  - ip: string

Returns:
  - error: InvalidCode, Conflict if nothing is pending, or internal failures
*/
func (manager *MFAManager) VerifySetup(context context.Context, accountID, code, ip string) error {
	account, err := manager.accounts.FindByID(context, accountID)
	if err != nil {
		return err
	}

	if account.MFAEnabled {
		return apperr.Conflict("MFA is already enabled for this account")
	}
	if account.MFASecret == nil {
		return apperr.Conflict("MFA enrollment has not been started")
	}

	valid, err := manager.verifyTOTP(*account.MFASecret, code)
	if err != nil {
		return err
	}
	if !valid {
		if err := manager.credentials.PenalizeFailure(context, account, ip, "mfa_setup_code_invalid"); err != nil {
			return err
		}
		return apperr.InvalidCode()
	}

	if err := manager.accounts.EnableMFA(context, accountID); err != nil {
		return err
	}

	now := manager.now()
	manager.audit.Emit(context, audit.Event{
		Type:      audit.EventMFAEnabled,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		At:        now,
	})

	if err := manager.notify.SendMFAEnabledNotice(context, account.Email); err != nil {
		// Best-effort; the security transition already committed.
		manager.audit.Emit(context, audit.Event{
			Type:      audit.EventMFAEnabled,
			AccountID: account.ID,
			Reason:    "notice_delivery_failed",
			At:        now,
		})
	}

	return nil
}

/*
VerifyLogin checks a second-factor code during a restricted-session login.

Description: Tries the TOTP seed first, then falls back to the backup code
batch. Backup code consumption is a conditional update, so a code can be
spent exactly once even under racing logins. Any failure charges the shared
lockout counter.

Parameters:
  - context: context.Context
  - accountID: string
  - code: string (6-digit TOTP or 10-character backup code)
  - ip: string

Returns:
  - bool: Whether a backup code (rather than TOTP) was consumed
  - error: InvalidCode, AccountLocked, or internal failures
*/
func (manager *MFAManager) VerifyLogin(context context.Context, accountID, code, ip string) (bool, error) {
	now := manager.now()

	account, err := manager.accounts.FindByID(context, accountID)
	if err != nil {
		return false, err
	}

	if account.IsLocked(now) {
		return false, apperr.AccountLocked(remainingMinutes(*account.LockedUntil, now))
	}

	if !account.MFAEnabled || account.MFASecret == nil {
		return false, apperr.Conflict("MFA is not enabled for this account")
	}

	valid, err := manager.verifyTOTP(*account.MFASecret, code)
	if err != nil {
		return false, err
	}

	if valid {
		manager.audit.Emit(context, audit.Event{
			Type:      audit.EventMFAVerified,
			AccountID: account.ID,
			Email:     account.Email,
			TenantID:  account.Tenant(),
			IP:        ip,
			At:        now,
		})
		return false, nil
	}

	// TOTP mismatch: try the backup code batch.
	consumed, err := manager.consumeBackupCode(context, account, code, now)
	if err != nil {
		return false, err
	}
	if consumed {
		manager.audit.Emit(context, audit.Event{
			Type:      audit.EventBackupCodeUsed,
			AccountID: account.ID,
			Email:     account.Email,
			TenantID:  account.Tenant(),
			IP:        ip,
			At:        now,
		})
		return true, nil
	}

	if err := manager.credentials.PenalizeFailure(context, account, ip, "mfa_code_invalid"); err != nil {
		return false, err
	}
	manager.audit.Emit(context, audit.Event{
		Type:      audit.EventMFAFailed,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		At:        now,
	})

	return false, apperr.InvalidCode()
}

/*
RegenerateBackupCodes replaces the account's entire backup code batch.

Description: Requires fresh password confirmation. All previous codes (used
or not) are invalidated in one transaction.

Parameters:
  - context: context.Context
  - accountID: string
  - password: string
  - ip: string

Returns:
  - []string: The new plaintext codes (shown once)
  - error: InvalidPassword, Conflict if MFA is off, or internal failures
*/
func (manager *MFAManager) RegenerateBackupCodes(context context.Context, accountID, password, ip string) ([]string, error) {
	account, err := manager.credentials.ConfirmPassword(context, accountID, password, ip)
	if err != nil {
		return nil, err
	}

	if !account.MFAEnabled {
		return nil, apperr.Conflict("MFA is not enabled for this account")
	}

	plainCodes, err := manager.replaceBackupCodes(context, accountID)
	if err != nil {
		return nil, err
	}

	manager.audit.Emit(context, audit.Event{
		Type:      audit.EventBackupCodesRegenerated,
		AccountID: account.ID,
		Email:     account.Email,
		TenantID:  account.Tenant(),
		IP:        ip,
		At:        manager.now(),
	})

	return plainCodes, nil
}

/*
IssueTrustedDevice creates a signed "remember this device" grant.

Parameters:
  - accountID: string

Returns:
  - string: Signed token for the device cookie
  - error: Signing failures
*/
func (manager *MFAManager) IssueTrustedDevice(accountID string) (string, error) {
	return manager.devices.Issue(accountID, TrustedDeviceTTL)
}

/*
IsTrustedDevice reports whether a device token is a valid grant for the account.

Parameters:
  - token: string (from the device cookie)
  - accountID: string

Returns:
  - bool: Whether MFA may be skipped
*/
func (manager *MFAManager) IsTrustedDevice(token, accountID string) bool {
	if token == "" {
		return false
	}
	trustedFor, err := manager.devices.Verify(token)
	return err == nil && trustedFor == accountID
}

// verifyTOTP decrypts the stored seed and checks the code against it.
func (manager *MFAManager) verifyTOTP(encryptedSecret, code string) (bool, error) {
	secretBase32, err := sec.DecryptString(manager.cipherKey, encryptedSecret)
	if err != nil {
		return false, fmt.Errorf("auth_mfa_secret_decryption_failed: %w", err)
	}

	secret, err := sec.DecodeTOTPSecret(secretBase32)
	if err != nil {
		return false, fmt.Errorf("auth_mfa_secret_decode_failed: %w", err)
	}

	return sec.VerifyTOTP(secret, code, manager.now()), nil
}

// consumeBackupCode finds and atomically spends a matching unused code.
func (manager *MFAManager) consumeBackupCode(context context.Context, account *Account, code string, usedAt time.Time) (bool, error) {
	codes, err := manager.backupCodes.Unused(context, account.ID)
	if err != nil {
		return false, err
	}

	for _, candidate := range codes {
		if !sec.CheckPasswordHash(code, candidate.CodeHash) {
			continue
		}

		// The conditional update decides the race: only one caller wins.
		consumed, err := manager.backupCodes.Consume(context, candidate.ID, usedAt)
		if err != nil {
			return false, err
		}
		return consumed, nil
	}

	return false, nil
}

// replaceBackupCodes generates a fresh batch, stores the hashes, and returns
// the plaintext codes.
func (manager *MFAManager) replaceBackupCodes(context context.Context, accountID string) ([]string, error) {
	plainCodes := make([]string, 0, BackupCodeCount)
	hashedCodes := make([]BackupCode, 0, BackupCodeCount)

	for i := 0; i < BackupCodeCount; i++ {
		raw := make([]byte, BackupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("auth_mfa_backup_code_generation_failed: %w", err)
		}
		plain := hex.EncodeToString(raw)

		hash, err := sec.HashPassword(plain)
		if err != nil {
			return nil, fmt.Errorf("auth_mfa_backup_code_hash_failed: %w", err)
		}

		plainCodes = append(plainCodes, plain)
		hashedCodes = append(hashedCodes, BackupCode{
			ID:        uuidv7.New(),
			AccountID: accountID,
			CodeHash:  hash,
		})
	}

	if err := manager.backupCodes.Replace(context, accountID, hashedCodes); err != nil {
		return nil, err
	}

	return plainCodes, nil
}
