// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

// cheap keeps the suite fast; production uses DefaultParams.
var cheap = auth.Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(cheap)

	t.Run("encodes parameters", func(t *testing.T) {
		hash, err := hasher.Hash("wizard")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
	})

	t.Run("salted", func(t *testing.T) {
		a, err := hasher.Hash("same")
		require.NoError(t, err)
		b, err := hasher.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		errutil.AssertErrorCode(t, err, auth.CodeEmptyPassword)
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(cheap)
	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)

	ok, err := hasher.Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	// A default-cost hasher verifies hashes made with other costs.
	ok, err = auth.NewArgon2idHasher().Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2idHasher_VerifyMalformed(t *testing.T) {
	hasher := auth.NewArgon2idHasher()
	tests := []struct {
		name string
		hash string
	}{
		{"not phc", "not-a-valid-hash"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"other version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA"},
		{"too many threads", "$argon2id$v=19$m=1024,t=1,p=256$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA"},
		{"bad key", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$!!!"},
		{"empty key", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("password", tt.hash)
			assert.False(t, ok)
			errutil.AssertErrorCode(t, err, auth.CodeInvalidHash)
		})
	}
}
