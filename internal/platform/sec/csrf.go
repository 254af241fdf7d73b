// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// # CSRF Tokens (Double-Submit)
//
// Tokens are self-contained: value, issuance timestamp, and an HMAC-SHA256
// signature over both. Verification recomputes the signature and checks the
// TTL — no server-side storage, so it scales horizontally without shared state.

// csrfRandomBytes is the entropy of the random token component.
const csrfRandomBytes = 16

// CSRFService issues and verifies stateless anti-forgery tokens.
type CSRFService struct {
	secret []byte
	ttl    time.Duration

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewCSRFService constructs a [CSRFService] signing with the given shared secret.
func NewCSRFService(secret []byte, ttl time.Duration, opts ...CSRFOption) *CSRFService {
	service := &CSRFService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CSRFOption customizes a [CSRFService].
type CSRFOption func(*CSRFService)

// WithCSRFClock overrides the time source (tests only).
func WithCSRFClock(clock func() time.Time) CSRFOption {
	return func(service *CSRFService) { service.now = clock }
}

// TTL returns the configured token lifetime.
func (service *CSRFService) TTL() time.Duration {
	return service.ttl
}

/*
Issue creates a new token of the form "value:issuedAt:signature".

Returns:
  - string: Transport-ready token (cookie and header carry identical copies)
  - error: Entropy failures
*/
func (service *CSRFService) Issue() (string, error) {
	value, err := GenerateSecureToken(csrfRandomBytes)
	if err != nil {
		return "", err
	}

	issuedAt := strconv.FormatInt(service.now().Unix(), 10)
	signature := service.sign(value, issuedAt)

	return value + ":" + issuedAt + ":" + signature, nil
}

/*
Verify validates the double-submit pair.

Description: Requires byte-equality of the two copies, a valid signature,
and an issuance timestamp within the TTL. Every comparison of secret
material is constant-time.

Parameters:
  - cookieToken: Token read from the CSRF cookie
  - headerToken: Token read from the request header or form field

Returns:
  - bool: true only if all three checks pass
*/
func (service *CSRFService) Verify(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}

	// Double-submit: both copies must be byte-identical.
	if !hmac.Equal([]byte(cookieToken), []byte(headerToken)) {
		return false
	}

	parts := strings.Split(cookieToken, ":")
	if len(parts) != 3 {
		return false
	}
	value, issuedAt, signature := parts[0], parts[1], parts[2]

	// Signature must match before the timestamp is trusted.
	expected := service.sign(value, issuedAt)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return false
	}

	issuedUnix, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil {
		return false
	}

	age := service.now().Sub(time.Unix(issuedUnix, 0))
	return age >= 0 && age <= service.ttl
}

// sign computes the hex HMAC-SHA256 over "value:issuedAt".
func (service *CSRFService) sign(value, issuedAt string) string {
	mac := hmac.New(sha256.New, service.secret)
	_, _ = fmt.Fprintf(mac, "%s:%s", value, issuedAt)
	return hex.EncodeToString(mac.Sum(nil))
}
