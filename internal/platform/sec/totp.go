// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// # Time-Based One-Time Passwords (RFC 6238)
//
// Fixed parameters: SHA-1, 6 digits, 30-second period. These are the values
// every mainstream authenticator app ships with, so they are deliberately not
// configurable.

const (
	// TOTPSecretBytes is the raw entropy of a generated seed (160 bits, RFC 4226 minimum).
	TOTPSecretBytes = 20

	// TOTPDigits is the length of a generated code.
	TOTPDigits = 6

	// TOTPPeriod is the length of one time step.
	TOTPPeriod = 30 * time.Second

	// TOTPSkewSteps is the accepted clock-skew tolerance in time steps
	// (one step either side of the current one).
	TOTPSkewSteps = 1
)

// totpEncoding is unpadded base32, the alphabet authenticator apps expect.
var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateTOTPSecret returns a fresh random seed as raw bytes and its
// base32 form for provisioning.
func GenerateTOTPSecret() ([]byte, string, error) {
	raw := make([]byte, TOTPSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("sec: totp secret generation failed: %w", err)
	}
	return raw, totpEncoding.EncodeToString(raw), nil
}

// DecodeTOTPSecret parses a base32 seed back into raw bytes.
func DecodeTOTPSecret(secretBase32 string) ([]byte, error) {
	raw, err := totpEncoding.DecodeString(strings.ToUpper(strings.TrimSpace(secretBase32)))
	if err != nil {
		return nil, fmt.Errorf("sec: invalid totp secret: %w", err)
	}
	return raw, nil
}

// TOTPProvisionURI builds the otpauth:// URI encoded into enrollment QR codes.
func TOTPProvisionURI(issuer, account, secretBase32 string) string {
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(int(TOTPPeriod.Seconds())))
	v.Set("digits", strconv.Itoa(TOTPDigits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyTOTP reports whether code is valid for secret at time now, accepting
// ±[TOTPSkewSteps] steps of clock skew. Comparison is constant-time.
func VerifyTOTP(secret []byte, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != TOTPDigits || !isNumeric(trimmed) {
		return false
	}
	if len(secret) == 0 {
		return false
	}

	baseCounter := now.Unix() / int64(TOTPPeriod.Seconds())
	for step := -TOTPSkewSteps; step <= TOTPSkewSteps; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotpCode(secret, counter)), []byte(trimmed)) == 1 {
			return true
		}
	}

	return false
}

// TOTPCode computes the expected code for secret at time t.
//
// Exposed for enrollment self-checks and tests; never log its output.
func TOTPCode(secret []byte, t time.Time) string {
	return hotpCode(secret, t.Unix()/int64(TOTPPeriod.Seconds()))
}

// hotpCode implements the RFC 4226 dynamic truncation over HMAC-SHA1.
func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < TOTPDigits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", TOTPDigits, bin%mod)
}

// isNumeric reports whether s consists solely of ASCII digits.
func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
