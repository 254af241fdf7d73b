// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendora/vendora/internal/identity/auth"
	"github.com/vendora/vendora/internal/platform/apperr"
	"github.com/vendora/vendora/internal/platform/audit"
)

// In-memory doubles for the auth stores. They mirror the conditional-update
// semantics of the SQL implementations (token consumption and backup code
// spending succeed at most once) so the services can be tested against the
// same atomicity guarantees they rely on in production.

// testEpoch anchors the fake clock. It is derived from wall time rather than
// a fixed date because the Redis session store arms real PEXPIREAT backstops
// from the timestamps it is given; a calendar-fixed epoch would eventually
// fall behind the server's clock and expire every session at creation.
var testEpoch = time.Now().UTC().Truncate(time.Second)

// fakeClock is a mutable time source shared between a service and its stores.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: testEpoch}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.current
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.current = clock.current.Add(d)
}

// quickHash produces a bcrypt hash at the minimum cost. The cost is embedded
// in the hash, so verification against it works exactly like production hashes
// without paying the full work factor in every test.
func quickHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// testAccount builds a minimal active customer account.
func testAccount(id, email, passwordHash string) *auth.Account {
	return &auth.Account{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "customer",
		Status:       "active",
	}
}

// # Account Store Double

type fakeAccountStore struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*auth.Account
}

func newFakeAccountStore(clock *fakeClock) *fakeAccountStore {
	return &fakeAccountStore{
		now:      clock.Now,
		accounts: make(map[string]*auth.Account),
	}
}

func (store *fakeAccountStore) add(account *auth.Account) {
	store.mu.Lock()
	defer store.mu.Unlock()
	clone := *account
	store.accounts[account.ID] = &clone
}

// snapshot returns a copy of the stored row for assertions.
func (store *fakeAccountStore) snapshot(t *testing.T, id string) auth.Account {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	require.True(t, ok, "account %s not in store", id)
	return *account
}

func (store *fakeAccountStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *account
	return &clone, nil
}

func (store *fakeAccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, account := range store.accounts {
		if account.Email == email {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store *fakeAccountStore) FindByResetToken(ctx context.Context, token string) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, account := range store.accounts {
		if account.ResetToken != nil && *account.ResetToken == token &&
			account.ResetExpires != nil && account.ResetExpires.After(store.now()) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store *fakeAccountStore) Create(ctx context.Context, account *auth.Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.accounts {
		if existing.Email == account.Email {
			return apperr.Conflict("Account already exists")
		}
	}
	now := store.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	clone := *account
	store.accounts[account.ID] = &clone
	return nil
}

func (store *fakeAccountStore) UpdatePassword(ctx context.Context, accountID, newHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.PasswordHash = newHash
	return nil
}

func (store *fakeAccountStore) RecordFailedAttempt(ctx context.Context, accountID string, maxAttempts int, lockFor time.Duration) (int, *time.Time, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return 0, nil, apperr.NotFound("Account")
	}
	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= maxAttempts {
		deadline := store.now().Add(lockFor)
		account.LockedUntil = &deadline
	}
	return account.FailedLoginAttempts, account.LockedUntil, nil
}

func (store *fakeAccountStore) ResetLockout(ctx context.Context, accountID string, loginAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &loginAt
	return nil
}

func (store *fakeAccountStore) SetResetToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.ResetToken = &token
	account.ResetExpires = &expiresAt
	return nil
}

func (store *fakeAccountStore) ConsumeResetToken(ctx context.Context, token, newHash string) (string, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, account := range store.accounts {
		if account.ResetToken != nil && *account.ResetToken == token &&
			account.ResetExpires != nil && account.ResetExpires.After(store.now()) {
			account.PasswordHash = newHash
			account.ResetToken = nil
			account.ResetExpires = nil
			account.FailedLoginAttempts = 0
			account.LockedUntil = nil
			return account.ID, true, nil
		}
	}
	return "", false, nil
}

func (store *fakeAccountStore) SetMFASecret(ctx context.Context, accountID, encryptedSecret string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.MFASecret = &encryptedSecret
	return nil
}

func (store *fakeAccountStore) EnableMFA(ctx context.Context, accountID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.MFAEnabled = true
	return nil
}

func (store *fakeAccountStore) SetVerificationToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.VerificationToken = &token
	account.VerificationExpires = &expiresAt
	return nil
}

func (store *fakeAccountStore) ConsumeVerificationToken(ctx context.Context, token string) (string, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, account := range store.accounts {
		if account.VerificationToken != nil && *account.VerificationToken == token &&
			account.VerificationExpires != nil && account.VerificationExpires.After(store.now()) {
			account.EmailVerified = true
			account.VerificationToken = nil
			account.VerificationExpires = nil
			return account.ID, true, nil
		}
	}
	return "", false, nil
}

// outageAccountStore fails every lookup with the given error, simulating a
// storage outage in front of an otherwise healthy store.
type outageAccountStore struct {
	*fakeAccountStore
	err error
}

func (store *outageAccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return nil, store.err
}

func (store *outageAccountStore) FindByResetToken(ctx context.Context, token string) (*auth.Account, error) {
	return nil, store.err
}

// # Password History Double

type fakeHistoryStore struct {
	mu      sync.Mutex
	next    int
	entries map[string][]auth.PasswordHistoryEntry // newest first
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{entries: make(map[string][]auth.PasswordHistoryEntry)}
}

func (store *fakeHistoryStore) Append(ctx context.Context, accountID, passwordHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.next++
	entry := auth.PasswordHistoryEntry{
		ID:           fmt.Sprintf("history-%d", store.next),
		AccountID:    accountID,
		PasswordHash: passwordHash,
	}
	store.entries[accountID] = append([]auth.PasswordHistoryEntry{entry}, store.entries[accountID]...)
	return nil
}

func (store *fakeHistoryStore) Recent(ctx context.Context, accountID string, limit int) ([]auth.PasswordHistoryEntry, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	entries := store.entries[accountID]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]auth.PasswordHistoryEntry(nil), entries...), nil
}

func (store *fakeHistoryStore) Prune(ctx context.Context, accountID string, keep int) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if entries := store.entries[accountID]; len(entries) > keep {
		store.entries[accountID] = entries[:keep]
	}
	return nil
}

func (store *fakeHistoryStore) size(accountID string) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.entries[accountID])
}

// # Backup Code Double

type fakeBackupCodeStore struct {
	mu    sync.Mutex
	codes map[string][]*auth.BackupCode // keyed by account
}

func newFakeBackupCodeStore() *fakeBackupCodeStore {
	return &fakeBackupCodeStore{codes: make(map[string][]*auth.BackupCode)}
}

func (store *fakeBackupCodeStore) Replace(ctx context.Context, accountID string, codes []auth.BackupCode) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	batch := make([]*auth.BackupCode, 0, len(codes))
	for _, code := range codes {
		clone := code
		batch = append(batch, &clone)
	}
	store.codes[accountID] = batch
	return nil
}

func (store *fakeBackupCodeStore) Unused(ctx context.Context, accountID string) ([]auth.BackupCode, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	unused := make([]auth.BackupCode, 0)
	for _, code := range store.codes[accountID] {
		if !code.Used {
			unused = append(unused, *code)
		}
	}
	return unused, nil
}

func (store *fakeBackupCodeStore) Consume(ctx context.Context, codeID string, usedAt time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, batch := range store.codes {
		for _, code := range batch {
			if code.ID != codeID {
				continue
			}
			if code.Used {
				return false, nil
			}
			code.Used = true
			code.UsedAt = &usedAt
			return true, nil
		}
	}
	return false, nil
}

// # Session Store Double

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*auth.Session)}
}

func (store *fakeSessionStore) Create(ctx context.Context, session *auth.Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	clone := *session
	store.sessions[session.ID] = &clone
	return nil
}

func (store *fakeSessionStore) Get(ctx context.Context, sessionID string) (*auth.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	session, ok := store.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (store *fakeSessionStore) Touch(ctx context.Context, accountID, sessionID string, accessedAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if session, ok := store.sessions[sessionID]; ok {
		session.LastAccessedAt = accessedAt
	}
	return nil
}

func (store *fakeSessionStore) ExtendExpiry(ctx context.Context, sessionID string, expiresAt time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	session, ok := store.sessions[sessionID]
	if !ok {
		return false, nil
	}
	session.ExpiresAt = expiresAt
	return true, nil
}

func (store *fakeSessionStore) SetMFAVerified(ctx context.Context, sessionID string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	session, ok := store.sessions[sessionID]
	if !ok {
		return false, nil
	}
	session.MFAVerified = true
	return true, nil
}

func (store *fakeSessionStore) Delete(ctx context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, sessionID)
	return nil
}

func (store *fakeSessionStore) DeleteAll(ctx context.Context, accountID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	removed := 0
	for id, session := range store.sessions {
		if session.AccountID == accountID {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (store *fakeSessionStore) DeleteOthers(ctx context.Context, accountID, keepSessionID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	removed := 0
	for id, session := range store.sessions {
		if session.AccountID == accountID && id != keepSessionID {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (store *fakeSessionStore) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}

// # Audit Recorder

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (emitter *recordingEmitter) Emit(ctx context.Context, event audit.Event) {
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	emitter.events = append(emitter.events, event)
}

func (emitter *recordingEmitter) count(eventType audit.EventType) int {
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	total := 0
	for _, event := range emitter.events {
		if event.Type == eventType {
			total++
		}
	}
	return total
}

func (emitter *recordingEmitter) last(eventType audit.EventType) (audit.Event, bool) {
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	for i := len(emitter.events) - 1; i >= 0; i-- {
		if emitter.events[i].Type == eventType {
			return emitter.events[i], true
		}
	}
	return audit.Event{}, false
}

// # Notification Recorder

type stubDispatcher struct {
	mu                 sync.Mutex
	verificationTokens []string
	resetTokens        []string
	passwordChanged    int
	mfaEnabled         int
}

func (dispatcher *stubDispatcher) SendVerificationEmail(ctx context.Context, email, token string) error {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.verificationTokens = append(dispatcher.verificationTokens, token)
	return nil
}

func (dispatcher *stubDispatcher) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.resetTokens = append(dispatcher.resetTokens, token)
	return nil
}

func (dispatcher *stubDispatcher) SendPasswordChangedNotice(ctx context.Context, email string) error {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.passwordChanged++
	return nil
}

func (dispatcher *stubDispatcher) SendMFAEnabledNotice(ctx context.Context, email string) error {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.mfaEnabled++
	return nil
}

func (dispatcher *stubDispatcher) lastResetToken(t *testing.T) string {
	t.Helper()
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	require.NotEmpty(t, dispatcher.resetTokens)
	return dispatcher.resetTokens[len(dispatcher.resetTokens)-1]
}
