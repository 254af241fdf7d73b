// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/platform/sec"
)

/*
TestDeviceTokenService_RoundTrip checks issue and verify of a trusted-device
grant.
*/
func TestDeviceTokenService_RoundTrip(t *testing.T) {
	service := sec.NewDeviceTokenService([]byte("device-signing-secret"), "vendora-api")

	token, err := service.Issue("0191e5a0-0000-7000-8000-000000000001", 30*24*time.Hour)
	require.NoError(t, err)

	accountID, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "0191e5a0-0000-7000-8000-000000000001", accountID)
}

/*
TestDeviceTokenService_RejectsExpired checks that an expired grant fails
verification.
*/
func TestDeviceTokenService_RejectsExpired(t *testing.T) {
	service := sec.NewDeviceTokenService([]byte("device-signing-secret"), "vendora-api")

	token, err := service.Issue("account-1", -time.Minute)
	require.NoError(t, err)

	_, err = service.Verify(token)
	assert.Error(t, err)
}

/*
TestDeviceTokenService_RejectsForeignToken checks signature and issuer
binding.
*/
func TestDeviceTokenService_RejectsForeignToken(t *testing.T) {
	issuing := sec.NewDeviceTokenService([]byte("secret-a"), "vendora-api")
	token, err := issuing.Issue("account-1", time.Hour)
	require.NoError(t, err)

	// Different signing secret.
	otherSecret := sec.NewDeviceTokenService([]byte("secret-b"), "vendora-api")
	_, err = otherSecret.Verify(token)
	assert.Error(t, err)

	// Same secret, different issuer.
	otherIssuer := sec.NewDeviceTokenService([]byte("secret-a"), "other-service")
	_, err = otherIssuer.Verify(token)
	assert.Error(t, err)
}

/*
TestDeviceTokenService_RejectsGarbage checks that malformed input never
verifies.
*/
func TestDeviceTokenService_RejectsGarbage(t *testing.T) {
	service := sec.NewDeviceTokenService([]byte("device-signing-secret"), "vendora-api")

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := service.Verify(raw)
		assert.Error(t, err, "input=%q", raw)
	}
}
