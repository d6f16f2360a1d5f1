//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package secret

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCipherKeySize(t *testing.T) {
	_, err := NewCipher(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewCipher(nil)
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	c, err := NewCipher(make([]byte, KeySize))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSealOpenRoundtrip(t *testing.T) {
	c, err := NewCipherFromPassphrase("digest master key")
	require.NoError(t, err)

	sealed, err := c.Seal("sk-live-credential")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-live-credential", sealed)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-credential", opened)
}

func TestSealIsRandomized(t *testing.T) {
	c, err := NewCipherFromPassphrase("digest master key")
	require.NoError(t, err)

	first, err := c.Seal("same secret")
	require.NoError(t, err)
	second, err := c.Seal("same secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "the random nonce must vary per call")
}

func TestPassphraseDerivationIsDeterministic(t *testing.T) {
	alpha, err := NewCipherFromPassphrase("shared")
	require.NoError(t, err)
	beta, err := NewCipherFromPassphrase("shared")
	require.NoError(t, err)

	sealed, err := alpha.Seal("portable secret")
	require.NoError(t, err)
	opened, err := beta.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "portable secret", opened)
}

func TestOpenRejectsTamper(t *testing.T) {
	c, err := NewCipherFromPassphrase("digest master key")
	require.NoError(t, err)

	sealed, err := c.Seal("authentic")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)

	// Flip one ciphertext bit and reseal.
	raw[len(raw)-1] ^= 0x01
	_, err = c.Open(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	right, err := NewCipherFromPassphrase("right")
	require.NoError(t, err)
	wrong, err := NewCipherFromPassphrase("wrong")
	require.NoError(t, err)

	sealed, err := right.Seal("secret")
	require.NoError(t, err)
	_, err = wrong.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsMalformedInput(t *testing.T) {
	c, err := NewCipher(bytes.Repeat([]byte{0x42}, KeySize))
	require.NoError(t, err)

	t.Run("not base64", func(t *testing.T) {
		_, err := c.Open("%%% not base64 %%%")
		assert.Error(t, err)
	})
	t.Run("too short", func(t *testing.T) {
		_, err := c.Open(base64.StdEncoding.EncodeToString([]byte("ab")))
		assert.Error(t, err)
	})
}

func TestEmptyPassphraseRejected(t *testing.T) {
	_, err := NewCipherFromPassphrase("")
	assert.Error(t, err)
}
