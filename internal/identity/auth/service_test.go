// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/identity/auth"
	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/sec"
)

type serviceHarness struct {
	service    *auth.AccountService
	accounts   *fakeAccountStore
	history    *fakeHistoryStore
	sessions   *fakeSessionStore
	sessionSvc *auth.SessionService
	emitter    *recordingEmitter
	dispatcher *stubDispatcher
	clock      *fakeClock
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	clock := newFakeClock()
	accounts := newFakeAccountStore(clock)
	history := newFakeHistoryStore()
	sessions := newFakeSessionStore()
	emitter := &recordingEmitter{}
	dispatcher := &stubDispatcher{}

	sessionSvc := auth.NewSessionService(sessions, accounts, emitter, auth.WithSessionClock(clock.Now))
	guard := auth.NewPasswordHistoryGuard(history)
	credentials := auth.NewCredentialValidator(accounts, emitter, auth.WithCredentialClock(clock.Now))
	service := auth.NewAccountService(accounts, guard, sessionSvc, credentials, dispatcher, emitter, auth.WithAccountClock(clock.Now))

	return &serviceHarness{
		service:    service,
		accounts:   accounts,
		history:    history,
		sessions:   sessions,
		sessionSvc: sessionSvc,
		emitter:    emitter,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

/*
TestAccountService_Register checks the enrollment of a new identity:
normalized email, hashed password, seeded history, verification token issued.
*/
func TestAccountService_Register(t *testing.T) {
	harness := newServiceHarness(t)

	account, err := harness.service.Register(context.Background(), auth.RegisterInput{
		Email:    " Shopper@Example.COM ",
		Password: "InitialPassword-1!",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "shopper@example.com", account.Email)
	assert.Equal(t, sec.RoleCustomer, account.Role)
	assert.Equal(t, sec.StatusActive, account.Status)
	assert.True(t, sec.CheckPasswordHash("InitialPassword-1!", account.PasswordHash))

	// First password already counts for the reuse window.
	assert.Equal(t, 1, harness.history.size(account.ID))
	assert.Equal(t, 1, harness.emitter.count(audit.EventAccountRegistered))

	// Verification token delivered; only its digest is at rest.
	row := harness.accounts.snapshot(t, account.ID)
	require.NotNil(t, row.VerificationToken)
	require.Len(t, harness.dispatcher.verificationTokens, 1)
	assert.Equal(t, sec.HashToken(harness.dispatcher.verificationTokens[0]), *row.VerificationToken)
	assert.NotEqual(t, harness.dispatcher.verificationTokens[0], *row.VerificationToken)
	assert.False(t, row.EmailVerified)
}

/*
TestAccountService_Register_StoreScoped checks that a tenant-scoped role
carries its tenant through.
*/
func TestAccountService_Register_StoreScoped(t *testing.T) {
	harness := newServiceHarness(t)

	tenantID := "0191e5a0-7c3b-7f1e-8a6d-3f2b1c0d9e8f"
	account, err := harness.service.Register(context.Background(), auth.RegisterInput{
		Email:    "admin@store.example.com",
		Password: "InitialPassword-1!",
		Role:     sec.RoleStoreAdmin,
		TenantID: &tenantID,
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleStoreAdmin, account.Role)
	assert.Equal(t, tenantID, account.Tenant())
}

/*
TestAccountService_Register_DuplicateEmail checks that a case-variant of an
existing email is rejected with a Conflict.
*/
func TestAccountService_Register_DuplicateEmail(t *testing.T) {
	harness := newServiceHarness(t)

	_, err := harness.service.Register(context.Background(), auth.RegisterInput{
		Email:    "shopper@example.com",
		Password: "InitialPassword-1!",
	})
	require.NoError(t, err)

	_, err = harness.service.Register(context.Background(), auth.RegisterInput{
		Email:    "SHOPPER@example.com",
		Password: "AnotherPassword-2!",
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

/*
TestAccountService_VerifyEmail checks single-use consumption of the
verification token.
*/
func TestAccountService_VerifyEmail(t *testing.T) {
	harness := newServiceHarness(t)

	account, err := harness.service.Register(context.Background(), auth.RegisterInput{
		Email:    "shopper@example.com",
		Password: "InitialPassword-1!",
	})
	require.NoError(t, err)
	token := harness.dispatcher.verificationTokens[0]

	require.NoError(t, harness.service.VerifyEmail(context.Background(), token))

	row := harness.accounts.snapshot(t, account.ID)
	assert.True(t, row.EmailVerified)
	assert.Nil(t, row.VerificationToken)
	assert.Equal(t, 1, harness.emitter.count(audit.EventEmailVerified))

	// Replay is rejected.
	err = harness.service.VerifyEmail(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", apperr.As(err).Code)

	// So is a fabricated token.
	err = harness.service.VerifyEmail(context.Background(), "fabricated")
	require.Error(t, err)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", apperr.As(err).Code)
}

/*
TestAccountService_ChangePassword checks the authenticated rotation: current
password gate, reuse gate, and revocation of every other session.
*/
func TestAccountService_ChangePassword(t *testing.T) {
	harness := newServiceHarness(t)

	account, err := harness.service.Register(context.Background(), auth.RegisterInput{
		Email:    "shopper@example.com",
		Password: "InitialPassword-1!",
	})
	require.NoError(t, err)

	current, err := harness.sessionSvc.Create(context.Background(), account, true)
	require.NoError(t, err)
	other, err := harness.sessionSvc.Create(context.Background(), account, true)
	require.NoError(t, err)

	// Wrong current password: rejected and charged to the lockout counter.
	err = harness.service.ChangePassword(context.Background(), account.ID, "wrong", "NewPassword-2!", current.ID, "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PASSWORD", apperr.As(err).Code)
	assert.Equal(t, 1, harness.accounts.snapshot(t, account.ID).FailedLoginAttempts)

	// Reusing the current password: rejected by the history guard.
	err = harness.service.ChangePassword(context.Background(), account.ID, "InitialPassword-1!", "InitialPassword-1!", current.ID, "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, "PASSWORD_REUSED", apperr.As(err).Code)

	// Happy path.
	err = harness.service.ChangePassword(context.Background(), account.ID, "InitialPassword-1!", "NewPassword-2!", current.ID, "10.0.0.1")
	require.NoError(t, err)

	row := harness.accounts.snapshot(t, account.ID)
	assert.True(t, sec.CheckPasswordHash("NewPassword-2!", row.PasswordHash))
	assert.Equal(t, 2, harness.history.size(account.ID))
	assert.Equal(t, 1, harness.emitter.count(audit.EventPasswordChanged))
	assert.Equal(t, 1, harness.dispatcher.passwordChanged)

	// The current session survived; the other one died.
	_, err = harness.sessionSvc.Validate(context.Background(), current.ID)
	require.NoError(t, err)
	_, err = harness.sessionSvc.Validate(context.Background(), other.ID)
	require.Error(t, err)
}
