// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	pair, err := Generate()
	require.NoError(t, err)

	assert.Equal(t, MethodS256, pair.Method)
	assert.Len(t, pair.CodeVerifier, 43)

	hash := sha256.Sum256([]byte(pair.CodeVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), pair.CodeChallenge)

	assert.NoError(t, ValidateChallengeFormat(pair.CodeChallenge))
	assert.True(t, Validate(pair.CodeVerifier, pair.CodeChallenge))
}

func TestGenerateUnique(t *testing.T) {
	first, err := Generate()
	require.NoError(t, err)
	second, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, first.CodeVerifier, second.CodeVerifier)
	assert.NotEqual(t, first.CodeChallenge, second.CodeChallenge)
}

func TestValidate(t *testing.T) {
	pair, err := Generate()
	require.NoError(t, err)

	assert.True(t, Validate(pair.CodeVerifier, pair.CodeChallenge))
	assert.False(t, Validate("wrong-verifier", pair.CodeChallenge))
	assert.False(t, Validate("", pair.CodeChallenge))
	assert.False(t, Validate(pair.CodeVerifier, ""))
}

func TestValidateChallengeFormat(t *testing.T) {
	pair, err := Generate()
	require.NoError(t, err)
	assert.NoError(t, ValidateChallengeFormat(pair.CodeChallenge))

	assert.Error(t, ValidateChallengeFormat(""))
	assert.Error(t, ValidateChallengeFormat("too-short"))
	assert.Error(t, ValidateChallengeFormat(pair.CodeChallenge[:42]))
	// Right length, invalid alphabet.
	assert.Error(t, ValidateChallengeFormat(pair.CodeChallenge[:42]+"+"))
}
