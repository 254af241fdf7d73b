// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/identity/auth"
)

/*
TestPasswordHistoryGuard_ReuseWindow checks that only the most recent hashes
count for the reuse check: the window is narrower than the retention.
*/
func TestPasswordHistoryGuard_ReuseWindow(t *testing.T) {
	store := newFakeHistoryStore()
	guard := auth.NewPasswordHistoryGuard(store)

	// Record one more password than the comparison window holds.
	passwords := make([]string, auth.PasswordReuseWindow+1)
	for i := range passwords {
		passwords[i] = fmt.Sprintf("Password-%d!", i)
		require.NoError(t, guard.Record(context.Background(), "acc-1", quickHash(t, passwords[i])))
	}

	// The oldest password fell out of the window.
	reused, err := guard.WasRecentlyUsed(context.Background(), "acc-1", passwords[0])
	require.NoError(t, err)
	assert.False(t, reused)

	// Every password inside the window is rejected.
	for _, password := range passwords[1:] {
		reused, err := guard.WasRecentlyUsed(context.Background(), "acc-1", password)
		require.NoError(t, err)
		assert.True(t, reused, "password %q should be in the window", password)
	}

	// A never-used password passes.
	reused, err = guard.WasRecentlyUsed(context.Background(), "acc-1", "BrandNew-Password!")
	require.NoError(t, err)
	assert.False(t, reused)
}

/*
TestPasswordHistoryGuard_Retention checks that Record prunes the history to
the retention limit.
*/
func TestPasswordHistoryGuard_Retention(t *testing.T) {
	store := newFakeHistoryStore()
	guard := auth.NewPasswordHistoryGuard(store)

	for i := 0; i < auth.PasswordHistoryRetention+3; i++ {
		require.NoError(t, guard.Record(context.Background(), "acc-1", quickHash(t, fmt.Sprintf("pw-%d", i))))
	}

	assert.Equal(t, auth.PasswordHistoryRetention, store.size("acc-1"))
}

/*
TestPasswordHistoryGuard_EmptyHistory checks the guard on a fresh account.
*/
func TestPasswordHistoryGuard_EmptyHistory(t *testing.T) {
	guard := auth.NewPasswordHistoryGuard(newFakeHistoryStore())

	reused, err := guard.WasRecentlyUsed(context.Background(), "acc-1", "anything")
	require.NoError(t, err)
	assert.False(t, reused)
}
