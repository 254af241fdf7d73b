// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/identity/auth"
	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/sec"
)

// mfaCipherKey is a fixed 32-byte AES-256 key for seed encryption in tests.
var mfaCipherKey = bytes.Repeat([]byte{0x7f}, 32)

type mfaHarness struct {
	manager     *auth.MFAManager
	accounts    *fakeAccountStore
	backupCodes *fakeBackupCodeStore
	emitter     *recordingEmitter
	dispatcher  *stubDispatcher
	clock       *fakeClock
}

func newMFAHarness(t *testing.T) *mfaHarness {
	t.Helper()

	clock := newFakeClock()
	accounts := newFakeAccountStore(clock)
	backupCodes := newFakeBackupCodeStore()
	emitter := &recordingEmitter{}
	dispatcher := &stubDispatcher{}

	credentials := auth.NewCredentialValidator(accounts, emitter, auth.WithCredentialClock(clock.Now))
	devices := sec.NewDeviceTokenService([]byte("device-signing-secret"), "vendora-api")

	manager := auth.NewMFAManager(
		accounts,
		backupCodes,
		credentials,
		devices,
		dispatcher,
		emitter,
		mfaCipherKey,
		"Vendora",
		auth.WithMFAClock(clock.Now),
	)

	return &mfaHarness{
		manager:     manager,
		accounts:    accounts,
		backupCodes: backupCodes,
		emitter:     emitter,
		dispatcher:  dispatcher,
		clock:       clock,
	}
}

// totpFor computes the valid code for a base32 seed at the harness clock.
func totpFor(t *testing.T, secretBase32 string, at time.Time) string {
	t.Helper()
	raw, err := sec.DecodeTOTPSecret(secretBase32)
	require.NoError(t, err)
	return sec.TOTPCode(raw, at)
}

// wrongCodeFor returns a deterministic 6-digit code that differs from valid.
func wrongCodeFor(valid string) string {
	if valid == "123456" {
		return "654321"
	}
	return "123456"
}

// enableMFADirectly flips an account to MFA-required with an encrypted seed
// and no backup codes, bypassing the enrollment flow.
func (harness *mfaHarness) enableMFADirectly(t *testing.T, accountID string) string {
	t.Helper()

	_, secretBase32, err := sec.GenerateTOTPSecret()
	require.NoError(t, err)
	encrypted, err := sec.EncryptString(mfaCipherKey, secretBase32)
	require.NoError(t, err)

	require.NoError(t, harness.accounts.SetMFASecret(context.Background(), accountID, encrypted))
	require.NoError(t, harness.accounts.EnableMFA(context.Background(), accountID))
	return secretBase32
}

/*
TestMFAManager_EnrollAndVerifySetup checks the full enrollment flow: seed
generation, encrypted storage, backup code batch, and activation on the first
valid code.
*/
func TestMFAManager_EnrollAndVerifySetup(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "pw")))

	enrollment, err := harness.manager.Enroll(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.QRCodeURL, "otpauth://totp/Vendora:shopper@example.com")
	require.Len(t, enrollment.BackupCodes, auth.BackupCodeCount)
	for _, code := range enrollment.BackupCodes {
		assert.Len(t, code, 2*auth.BackupCodeBytes)
	}

	// Enrollment is pending: the seed is stored encrypted, MFA not yet required.
	row := harness.accounts.snapshot(t, "acc-1")
	assert.False(t, row.MFAEnabled)
	require.NotNil(t, row.MFASecret)
	assert.NotEqual(t, enrollment.Secret, *row.MFASecret)
	assert.Equal(t, 1, harness.emitter.count(audit.EventMFAEnrolled))

	// A valid code from the provisioned seed activates MFA.
	code := totpFor(t, enrollment.Secret, harness.clock.Now())
	require.NoError(t, harness.manager.VerifySetup(context.Background(), "acc-1", code, "10.0.0.1"))

	row = harness.accounts.snapshot(t, "acc-1")
	assert.True(t, row.MFAEnabled)
	assert.Equal(t, 1, harness.emitter.count(audit.EventMFAEnabled))
	assert.Equal(t, 1, harness.dispatcher.mfaEnabled)
}

/*
TestMFAManager_Enroll_Conflicts checks that re-enrollment is blocked once
MFA is active, and that setup verification requires a pending seed.
*/
func TestMFAManager_Enroll_Conflicts(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "pw")))
	harness.accounts.add(testAccount("acc-2", "other@example.com", quickHash(t, "pw")))

	harness.enableMFADirectly(t, "acc-1")

	_, err := harness.manager.Enroll(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)

	// No enrollment was ever started for acc-2.
	err = harness.manager.VerifySetup(context.Background(), "acc-2", "123456", "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

/*
TestMFAManager_VerifySetup_WrongCode checks that a bad setup code is
penalized against the shared lockout counter and MFA stays off.
*/
func TestMFAManager_VerifySetup_WrongCode(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "pw")))

	enrollment, err := harness.manager.Enroll(context.Background(), "acc-1")
	require.NoError(t, err)

	valid := totpFor(t, enrollment.Secret, harness.clock.Now())
	err = harness.manager.VerifySetup(context.Background(), "acc-1", wrongCodeFor(valid), "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "INVALID_CODE", apperr.As(err).Code)

	row := harness.accounts.snapshot(t, "acc-1")
	assert.False(t, row.MFAEnabled)
	assert.Equal(t, 1, row.FailedLoginAttempts)
}

/*
TestMFAManager_VerifyLogin_TOTP checks login-time verification with a valid
authenticator code, including the one-step clock skew tolerance.
*/
func TestMFAManager_VerifyLogin_TOTP(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "pw")))
	secretBase32 := harness.enableMFADirectly(t, "acc-1")

	usedBackup, err := harness.manager.VerifyLogin(context.Background(), "acc-1",
		totpFor(t, secretBase32, harness.clock.Now()), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, usedBackup)
	assert.Equal(t, 1, harness.emitter.count(audit.EventMFAVerified))

	// A code from the previous time step still verifies.
	usedBackup, err = harness.manager.VerifyLogin(context.Background(), "acc-1",
		totpFor(t, secretBase32, harness.clock.Now().Add(-sec.TOTPPeriod)), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, usedBackup)
}

/*
TestMFAManager_VerifyLogin_BackupCodeSingleUse checks that a backup code
works exactly once and its reuse is treated as a failed attempt.
*/
func TestMFAManager_VerifyLogin_BackupCodeSingleUse(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "pw")))

	enrollment, err := harness.manager.Enroll(context.Background(), "acc-1")
	require.NoError(t, err)
	code := totpFor(t, enrollment.Secret, harness.clock.Now())
	require.NoError(t, harness.manager.VerifySetup(context.Background(), "acc-1", code, "10.0.0.1"))

	backupCode := enrollment.BackupCodes[0]

	usedBackup, err := harness.manager.VerifyLogin(context.Background(), "acc-1", backupCode, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, usedBackup)
	assert.Equal(t, 1, harness.emitter.count(audit.EventBackupCodeUsed))

	// Spent codes no longer verify.
	_, err = harness.manager.VerifyLogin(context.Background(), "acc-1", backupCode, "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "INVALID_CODE", apperr.As(err).Code)
	assert.Equal(t, 1, harness.emitter.count(audit.EventMFAFailed))
}

/*
TestMFAManager_VerifyLogin_SharedLockout checks that repeated MFA failures
lock the account through the same counter as password failures.
*/
func TestMFAManager_VerifyLogin_SharedLockout(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "pw")))
	secretBase32 := harness.enableMFADirectly(t, "acc-1")

	valid := totpFor(t, secretBase32, harness.clock.Now())
	wrong := wrongCodeFor(valid)

	for i := 0; i < auth.MaxFailedLoginAttempts; i++ {
		_, err := harness.manager.VerifyLogin(context.Background(), "acc-1", wrong, "10.0.0.1")
		require.Error(t, err)
	}

	require.NotNil(t, harness.accounts.snapshot(t, "acc-1").LockedUntil)
	assert.Equal(t, 1, harness.emitter.count(audit.EventAccountLocked))

	// Even a valid code is rejected during the lockout.
	_, err := harness.manager.VerifyLogin(context.Background(), "acc-1", valid, "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "ACCOUNT_LOCKED", apperr.As(err).Code)
}

/*
TestMFAManager_RegenerateBackupCodes checks password-gated regeneration and
that the old batch dies with it.
*/
func TestMFAManager_RegenerateBackupCodes(t *testing.T) {
	harness := newMFAHarness(t)
	harness.accounts.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	enrollment, err := harness.manager.Enroll(context.Background(), "acc-1")
	require.NoError(t, err)
	code := totpFor(t, enrollment.Secret, harness.clock.Now())
	require.NoError(t, harness.manager.VerifySetup(context.Background(), "acc-1", code, "10.0.0.1"))

	// Wrong password: rejected, nothing replaced.
	_, err = harness.manager.RegenerateBackupCodes(context.Background(), "acc-1", "wrong", "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PASSWORD", apperr.As(err).Code)

	fresh, err := harness.manager.RegenerateBackupCodes(context.Background(), "acc-1", "hunter2hunter2", "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, fresh, auth.BackupCodeCount)
	assert.NotEqual(t, enrollment.BackupCodes, fresh)
	assert.Equal(t, 1, harness.emitter.count(audit.EventBackupCodesRegenerated))

	// A code from the original batch is dead.
	_, err = harness.manager.VerifyLogin(context.Background(), "acc-1", enrollment.BackupCodes[0], "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "INVALID_CODE", apperr.As(err).Code)

	// A fresh one works.
	usedBackup, err := harness.manager.VerifyLogin(context.Background(), "acc-1", fresh[0], "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, usedBackup)
}

/*
TestMFAManager_TrustedDevice checks issuing and verifying the remember-device
grant, and that grants never transfer between accounts.
*/
func TestMFAManager_TrustedDevice(t *testing.T) {
	harness := newMFAHarness(t)

	token, err := harness.manager.IssueTrustedDevice("acc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.True(t, harness.manager.IsTrustedDevice(token, "acc-1"))
	assert.False(t, harness.manager.IsTrustedDevice(token, "acc-2"))
	assert.False(t, harness.manager.IsTrustedDevice("", "acc-1"))
	assert.False(t, harness.manager.IsTrustedDevice("garbage", "acc-1"))
}
