// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/identity/auth"
	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/sec"
)

// newCredentialHarness wires a validator against the in-memory store with an
// injected clock.
func newCredentialHarness(t *testing.T) (*auth.CredentialValidator, *fakeAccountStore, *recordingEmitter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := newFakeAccountStore(clock)
	emitter := &recordingEmitter{}
	validator := auth.NewCredentialValidator(store, emitter, auth.WithCredentialClock(clock.Now))
	return validator, store, emitter, clock
}

/*
TestCredentialValidator_Success checks the happy path: correct credentials
authenticate, clear the failure counter, and leave a login_succeeded event.
*/
func TestCredentialValidator_Success(t *testing.T) {
	validator, store, emitter, _ := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	account, err := validator.Validate(context.Background(), "shopper@example.com", "hunter2hunter2", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)
	assert.Zero(t, account.FailedLoginAttempts)
	require.NotNil(t, account.LastLoginAt)

	assert.Equal(t, 1, emitter.count(audit.EventLoginSucceeded))
	assert.Equal(t, 0, emitter.count(audit.EventLoginFailed))
}

/*
TestCredentialValidator_NormalizesEmail checks that a case-variant email with
whitespace still resolves the account.
*/
func TestCredentialValidator_NormalizesEmail(t *testing.T) {
	validator, store, _, _ := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	account, err := validator.Validate(context.Background(), "  Shopper@Example.COM ", "hunter2hunter2", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)
}

/*
TestCredentialValidator_EnumerationParity checks that an unknown email and a
wrong password return byte-identical errors.
*/
func TestCredentialValidator_EnumerationParity(t *testing.T) {
	validator, store, emitter, _ := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	_, unknownErr := validator.Validate(context.Background(), "ghost@example.com", "whatever", "10.0.0.1")
	_, wrongErr := validator.Validate(context.Background(), "shopper@example.com", "not-the-password", "10.0.0.1")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)

	unknownApp := apperr.As(unknownErr)
	wrongApp := apperr.As(wrongErr)
	require.NotNil(t, unknownApp)
	require.NotNil(t, wrongApp)

	assert.Equal(t, "INVALID_CREDENTIALS", unknownApp.Code)
	assert.Equal(t, unknownApp.Code, wrongApp.Code)
	assert.Equal(t, unknownApp.Message, wrongApp.Message)

	// Only the real account is charged a failed attempt.
	assert.Equal(t, 1, store.snapshot(t, "acc-1").FailedLoginAttempts)

	unknownEvent, ok := emitter.last(audit.EventLoginFailed)
	require.True(t, ok)
	assert.NotEmpty(t, unknownEvent.Reason)
}

/*
TestCredentialValidator_LockoutAfterThreshold checks that the fifth
consecutive failure locks the account and that even the correct password is
rejected during the lockout window.
*/
func TestCredentialValidator_LockoutAfterThreshold(t *testing.T) {
	validator, store, emitter, _ := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	for i := 0; i < auth.MaxFailedLoginAttempts; i++ {
		_, err := validator.Validate(context.Background(), "shopper@example.com", "wrong", "10.0.0.1")
		require.Error(t, err)
	}

	row := store.snapshot(t, "acc-1")
	assert.Equal(t, auth.MaxFailedLoginAttempts, row.FailedLoginAttempts)
	require.NotNil(t, row.LockedUntil)
	assert.Equal(t, 1, emitter.count(audit.EventAccountLocked))

	// Correct password during lockout is still rejected.
	_, err := validator.Validate(context.Background(), "shopper@example.com", "hunter2hunter2", "10.0.0.1")
	require.Error(t, err)
	lockedApp := apperr.As(err)
	require.NotNil(t, lockedApp)
	assert.Equal(t, "ACCOUNT_LOCKED", lockedApp.Code)
	assert.Contains(t, lockedApp.Message, "30 minutes")

	// Attempts during lockout never advance the counter.
	assert.Equal(t, auth.MaxFailedLoginAttempts, store.snapshot(t, "acc-1").FailedLoginAttempts)
}

/*
TestCredentialValidator_LockoutExpires checks that the window closes after
30 minutes and a correct login then resets all lockout state.
*/
func TestCredentialValidator_LockoutExpires(t *testing.T) {
	validator, store, _, clock := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	for i := 0; i < auth.MaxFailedLoginAttempts; i++ {
		_, _ = validator.Validate(context.Background(), "shopper@example.com", "wrong", "10.0.0.1")
	}
	require.NotNil(t, store.snapshot(t, "acc-1").LockedUntil)

	clock.Advance(auth.LockoutDuration + time.Second)

	account, err := validator.Validate(context.Background(), "shopper@example.com", "hunter2hunter2", "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, account.FailedLoginAttempts)

	row := store.snapshot(t, "acc-1")
	assert.Zero(t, row.FailedLoginAttempts)
	assert.Nil(t, row.LockedUntil)
}

/*
TestCredentialValidator_SuccessResetsCounter checks that a successful login
clears accumulated failures below the threshold.
*/
func TestCredentialValidator_SuccessResetsCounter(t *testing.T) {
	validator, store, _, _ := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	for i := 0; i < 3; i++ {
		_, _ = validator.Validate(context.Background(), "shopper@example.com", "wrong", "10.0.0.1")
	}
	require.Equal(t, 3, store.snapshot(t, "acc-1").FailedLoginAttempts)

	_, err := validator.Validate(context.Background(), "shopper@example.com", "hunter2hunter2", "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, store.snapshot(t, "acc-1").FailedLoginAttempts)
}

/*
TestCredentialValidator_InactiveAccount checks that suspended and deactivated
accounts cannot authenticate even with correct credentials.
*/
func TestCredentialValidator_InactiveAccount(t *testing.T) {
	tests := []struct {
		name   string
		status sec.AccountStatus
	}{
		{"suspended", sec.StatusSuspended},
		{"deactivated", sec.StatusDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, store, _, _ := newCredentialHarness(t)
			account := testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2"))
			account.Status = tt.status
			store.add(account)

			_, err := validator.Validate(context.Background(), "shopper@example.com", "hunter2hunter2", "10.0.0.1")
			require.Error(t, err)
			app := apperr.As(err)
			require.NotNil(t, app)
			assert.Equal(t, "ACCOUNT_NOT_ACTIVE", app.Code)
			assert.Contains(t, app.Message, string(tt.status))
		})
	}
}

/*
TestCredentialValidator_ConfirmPassword checks the re-confirmation used by
sensitive operations, including its contribution to the shared counter.
*/
func TestCredentialValidator_ConfirmPassword(t *testing.T) {
	validator, store, _, _ := newCredentialHarness(t)
	store.add(testAccount("acc-1", "shopper@example.com", quickHash(t, "hunter2hunter2")))

	account, err := validator.ConfirmPassword(context.Background(), "acc-1", "hunter2hunter2", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)

	_, err = validator.ConfirmPassword(context.Background(), "acc-1", "wrong", "10.0.0.1")
	require.Error(t, err)
	app := apperr.As(err)
	require.NotNil(t, app)
	assert.Equal(t, "INVALID_PASSWORD", app.Code)

	// Failed confirmation charges the same lockout counter as a failed login.
	assert.Equal(t, 1, store.snapshot(t, "acc-1").FailedLoginAttempts)
}

/*
TestCredentialValidator_StorageOutagePropagates checks that a failing account
lookup surfaces as an internal failure instead of the uniform
INVALID_CREDENTIALS rejection, so an outage stays visible to monitoring and is
never mistaken for a bad password.
*/
func TestCredentialValidator_StorageOutagePropagates(t *testing.T) {
	clock := newFakeClock()
	emitter := &recordingEmitter{}
	store := &outageAccountStore{
		fakeAccountStore: newFakeAccountStore(clock),
		err:              errors.New("connection refused"),
	}
	validator := auth.NewCredentialValidator(store, emitter, auth.WithCredentialClock(clock.Now))

	_, err := validator.Validate(context.Background(), "shopper@example.com", "hunter2hunter2", "10.0.0.1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")

	// Not a client-facing rejection, and no failed-login audit noise.
	assert.Nil(t, apperr.As(err))
	assert.Equal(t, 0, emitter.count(audit.EventLoginFailed))
}
