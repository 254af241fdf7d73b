// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Trusted-Device Tokens
//
// After a successful multi-factor login the client may ask to skip MFA on the
// same device for a limited period. The grant is a signed, stateless JWT kept
// in an HTTP-only cookie; losing it costs nothing but a fresh MFA prompt.

// trustedDevicePurpose is the audience claim pinning tokens to this one use.
const trustedDevicePurpose = "mfa_trusted_device"

// DeviceTokenClaims is the payload of a trusted-device grant.
type DeviceTokenClaims struct {
	jwt.RegisteredClaims

	// AccountID is the account the device is trusted for.
	AccountID string `json:"aid"`
}

// DeviceTokenService signs and verifies trusted-device tokens using HS256.
type DeviceTokenService struct {
	secret []byte
	issuer string
}

// NewDeviceTokenService creates a [DeviceTokenService] signing with the shared secret.
func NewDeviceTokenService(secret []byte, issuer string) *DeviceTokenService {
	return &DeviceTokenService{secret: secret, issuer: issuer}
}

// Issue creates a signed trusted-device token for the account.
func (service *DeviceTokenService) Issue(accountID string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := DeviceTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{trustedDevicePurpose},
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		AccountID: accountID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign device token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature, expiry, and purpose of a token and returns
// the account it trusts. Any failure collapses into a single error.
func (service *DeviceTokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	},
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(trustedDevicePurpose),
	)

	if err != nil {
		return "", fmt.Errorf("sec: invalid device token: %w", err)
	}

	claims, ok := token.Claims.(*DeviceTokenClaims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return "", fmt.Errorf("sec: invalid device token claims")
	}

	return claims.AccountID, nil
}
