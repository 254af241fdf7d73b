// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendora/vendora/internal/platform/constants"
	"github.com/vendora/vendora/internal/platform/sec"
)

// # Redis Session Repository
//
// Each session is one hash at auth:session:{id}; a per-account set at
// auth:session_index:{accountID} makes bulk invalidation an O(sessions)
// operation instead of a keyspace scan. Redis TTLs are a backstop only; the
// authoritative expiry and idle checks run in [SessionService].

// timeLayout is the storage format for session timestamps.
const timeLayout = time.RFC3339Nano

// extendScript updates the expiry only if the session still exists, so an
// extension can never resurrect a concurrently deleted session.
var extendScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	redis.call("HSET", KEYS[1], "expiresat", ARGV[1])
	redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[2]))
	return 1
`)

// mfaScript flips the MFA flag only if the session still exists.
var mfaScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	redis.call("HSET", KEYS[1], "mfaverified", "1")
	return 1
`)

// RedisSessionStore implements SessionStore using Redis hashes.
type RedisSessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new Redis-backed SessionStore.
func NewSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// sessionKey builds the hash key for one session.
func sessionKey(sessionID string) string {
	return constants.RedisPrefixSession + sessionID
}

// indexKey builds the per-account index set key.
func indexKey(accountID string) string {
	return constants.RedisPrefixSessionIndex + accountID
}

/*
Create persists a new session hash and registers it in the account index.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Execution errors
*/
func (repository *RedisSessionStore) Create(context context.Context, session *Session) error {
	key := sessionKey(session.ID)

	fields := map[string]any{
		"accountid":      session.AccountID,
		"email":          session.Email,
		"role":           string(session.Role),
		"tenantid":       session.TenantID,
		"mfaverified":    boolField(session.MFAVerified),
		"createdat":      session.CreatedAt.Format(timeLayout),
		"expiresat":      session.ExpiresAt.Format(timeLayout),
		"lastaccessedat": session.LastAccessedAt.Format(timeLayout),
	}

	pipeline := repository.client.TxPipeline()
	pipeline.HSet(context, key, fields)
	pipeline.PExpireAt(context, key, session.ExpiresAt)
	pipeline.SAdd(context, indexKey(session.AccountID), session.ID)
	pipeline.Expire(context, indexKey(session.AccountID), SessionIdleTimeout)

	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_session_store_create_failed: %w", err)
	}

	return nil
}

/*
Get returns the session with the given ID, or nil if absent.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Hydrated session, nil when not found
  - error: Retrieval or parse failures
*/
func (repository *RedisSessionStore) Get(context context.Context, sessionID string) (*Session, error) {
	fields, err := repository.client.HGetAll(context, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_session_store_get_failed: %w", err)
	}

	// HGETALL returns an empty map (not redis.Nil) for a missing key.
	if len(fields) == 0 {
		return nil, nil
	}

	session := &Session{
		ID:          sessionID,
		AccountID:   fields["accountid"],
		Email:       fields["email"],
		Role:        sec.Role(fields["role"]),
		TenantID:    fields["tenantid"],
		MFAVerified: fields["mfaverified"] == "1",
	}

	if session.CreatedAt, err = time.Parse(timeLayout, fields["createdat"]); err != nil {
		return nil, fmt.Errorf("redis_session_store_parse_createdat_failed: %w", err)
	}
	if session.ExpiresAt, err = time.Parse(timeLayout, fields["expiresat"]); err != nil {
		return nil, fmt.Errorf("redis_session_store_parse_expiresat_failed: %w", err)
	}
	if session.LastAccessedAt, err = time.Parse(timeLayout, fields["lastaccessedat"]); err != nil {
		return nil, fmt.Errorf("redis_session_store_parse_lastaccessedat_failed: %w", err)
	}

	return session, nil
}

/*
Touch updates the session's last-accessed timestamp and re-arms the account
index.

Description: The index set carries the idle-timeout TTL as garbage collection
for accounts that go fully dormant. Re-adding the member and refreshing the
TTL on every touch keeps the index alive (and self-heals it) as long as any
session still sees traffic, so bulk revocation can always find a session that
sliding extensions kept alive past the original TTL.

Parameters:
  - context: context.Context
  - accountID: string
  - sessionID: string
  - accessedAt: time.Time

Returns:
  - error: Execution errors
*/
func (repository *RedisSessionStore) Touch(context context.Context, accountID, sessionID string, accessedAt time.Time) error {
	pipeline := repository.client.TxPipeline()
	pipeline.HSet(context, sessionKey(sessionID), "lastaccessedat", accessedAt.Format(timeLayout))
	pipeline.SAdd(context, indexKey(accountID), sessionID)
	pipeline.Expire(context, indexKey(accountID), SessionIdleTimeout)

	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_session_store_touch_failed: %w", err)
	}
	return nil
}

/*
ExtendExpiry pushes the session's expiry out, only if it still exists.

Parameters:
  - context: context.Context
  - sessionID: string
  - expiresAt: time.Time

Returns:
  - bool: Whether the session existed and was extended
  - error: Execution errors
*/
func (repository *RedisSessionStore) ExtendExpiry(context context.Context, sessionID string, expiresAt time.Time) (bool, error) {
	result, err := extendScript.Run(context, repository.client,
		[]string{sessionKey(sessionID)},
		expiresAt.Format(timeLayout),
		strconv.FormatInt(expiresAt.UnixMilli(), 10),
	).Int()

	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("redis_session_store_extend_failed: %w", err)
	}

	return result == 1, nil
}

/*
SetMFAVerified flips the session's MFA flag, only if it still exists.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - bool: Whether the session existed and was updated
  - error: Execution errors
*/
func (repository *RedisSessionStore) SetMFAVerified(context context.Context, sessionID string) (bool, error) {
	result, err := mfaScript.Run(context, repository.client, []string{sessionKey(sessionID)}).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("redis_session_store_set_mfa_failed: %w", err)
	}

	return result == 1, nil
}

/*
Delete removes a single session and its index entry.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisSessionStore) Delete(context context.Context, sessionID string) error {
	// Resolve the owning account first so the index entry can be cleaned up.
	accountID, err := repository.client.HGet(context, sessionKey(sessionID), "accountid").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis_session_store_delete_lookup_failed: %w", err)
	}

	pipeline := repository.client.TxPipeline()
	pipeline.Del(context, sessionKey(sessionID))
	pipeline.SRem(context, indexKey(accountID), sessionID)

	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_session_store_delete_failed: %w", err)
	}

	return nil
}

/*
DeleteAll removes every session belonging to the account.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - int: Number of sessions removed
  - error: Deletion failures
*/
func (repository *RedisSessionStore) DeleteAll(context context.Context, accountID string) (int, error) {
	return repository.deleteFromIndex(context, accountID, "")
}

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
func (repository *RedisSessionStore) DeleteOthers(context context.Context, accountID, keepSessionID string) (int, error) {
	return repository.deleteFromIndex(context, accountID, keepSessionID)
}

// deleteFromIndex removes the account's indexed sessions, sparing keepSessionID
// when non-empty.
func (repository *RedisSessionStore) deleteFromIndex(context context.Context, accountID, keepSessionID string) (int, error) {
	sessionIDs, err := repository.client.SMembers(context, indexKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_session_store_index_read_failed: %w", err)
	}

	removed := 0
	for _, sessionID := range sessionIDs {
		if sessionID == keepSessionID {
			continue
		}

		deleted, err := repository.client.Del(context, sessionKey(sessionID)).Result()
		if err != nil {
			return removed, fmt.Errorf("redis_session_store_bulk_delete_failed: %w", err)
		}
		if deleted > 0 {
			removed++
		}

		if err := repository.client.SRem(context, indexKey(accountID), sessionID).Err(); err != nil {
			return removed, fmt.Errorf("redis_session_store_index_trim_failed: %w", err)
		}
	}

	return removed, nil
}

// boolField encodes a boolean for hash storage.
func boolField(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
