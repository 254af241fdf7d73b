// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/platform/sec"
)

/*
TestEncryptDecryptString checks the AES-256-GCM round trip and that
ciphertexts are nondeterministic (fresh nonce per call).
*/
func TestEncryptDecryptString(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plaintext := "JBSWY3DPEHPK3PXP"

	first, err := sec.EncryptString(key, plaintext)
	require.NoError(t, err)
	second, err := sec.EncryptString(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	decrypted, err := sec.DecryptString(key, first)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

/*
TestDecryptString_Failures checks that every failure mode collapses into
the single opaque [sec.ErrDecryptionFailed].
*/
func TestDecryptString_Failures(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	wrongKey := bytes.Repeat([]byte{0x24}, 32)

	encoded, err := sec.EncryptString(key, "sensitive")
	require.NoError(t, err)

	tests := []struct {
		name    string
		key     []byte
		encoded string
	}{
		{"wrong_key", wrongKey, encoded},
		{"not_base64", key, "%%%not-base64%%%"},
		{"truncated", key, encoded[:8]},
		{"tampered", key, "AAAA" + encoded[4:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sec.DecryptString(tt.key, tt.encoded)
			assert.ErrorIs(t, err, sec.ErrDecryptionFailed)
		})
	}
}

/*
TestEncryptString_RejectsBadKey checks that a key of the wrong length fails
at cipher construction rather than producing weak output.
*/
func TestEncryptString_RejectsBadKey(t *testing.T) {
	_, err := sec.EncryptString([]byte("short"), "plaintext")
	assert.Error(t, err)
}
