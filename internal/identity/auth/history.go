// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"fmt"

	"github.com/vendora/vendora/internal/platform/sec"
)

// # Password Reuse Guard

// PasswordHistoryGuard enforces the no-recent-reuse policy.
//
// The retention window (how many hashes are kept) is deliberately wider than
// the comparison window (how many are checked), leaving room to widen the
// policy later without a backfill.
type PasswordHistoryGuard struct {
	history PasswordHistoryStore
}

// NewPasswordHistoryGuard constructs a [PasswordHistoryGuard].
func NewPasswordHistoryGuard(history PasswordHistoryStore) *PasswordHistoryGuard {
	return &PasswordHistoryGuard{history: history}
}

/*
WasRecentlyUsed reports whether the candidate password matches any of the
account's most recent retired hashes.

Description: Each comparison is a full bcrypt verification; the loop
short-circuits on the first match to cap worst-case cost at the window size.

Parameters:
  - context: context.Context
  - accountID: string
  - candidatePassword: string

Returns:
  - bool: Whether the password appears in the reuse window
  - error: Retrieval failures
*/
func (guard *PasswordHistoryGuard) WasRecentlyUsed(context context.Context, accountID, candidatePassword string) (bool, error) {
	entries, err := guard.history.Recent(context, accountID, PasswordReuseWindow)
	if err != nil {
		return false, fmt.Errorf("auth_history_recent_failed: %w", err)
	}

	for _, entry := range entries {
		if sec.CheckPasswordHash(candidatePassword, entry.PasswordHash) {
			return true, nil
		}
	}

	return false, nil
}

/*
Record appends the hash that just became active and prunes the history down
to the retention limit.

Parameters:
  - context: context.Context
  - accountID: string
  - passwordHash: string

Returns:
  - error: Persistence failures
*/
func (guard *PasswordHistoryGuard) Record(context context.Context, accountID, passwordHash string) error {
	if err := guard.history.Append(context, accountID, passwordHash); err != nil {
		return fmt.Errorf("auth_history_append_failed: %w", err)
	}

	if err := guard.history.Prune(context, accountID, PasswordHistoryRetention); err != nil {
		return fmt.Errorf("auth_history_prune_failed: %w", err)
	}

	return nil
}
