// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package auth holds player credential primitives: password hashing and
// login failure throttling.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Error codes.
const (
	CodeEmptyPassword = "AUTH_EMPTY_PASSWORD"
	CodeInvalidHash   = "AUTH_INVALID_HASH"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")

// Params are the argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultParams follow the OWASP argon2id recommendation.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}

// PasswordHasher hashes and verifies player passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns (false, nil) on mismatch and an error only for a malformed hash.
	Verify(password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher with argon2id PHC strings:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2idHasher struct {
	params Params
}

// NewArgon2idHasher returns a hasher using DefaultParams.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultParams}
}

// NewArgon2idHasherWithParams returns a hasher with custom costs. Verify
// always uses the costs encoded in the hash.
func NewArgon2idHasherWithParams(p Params) *Argon2idHasher {
	return &Argon2idHasher{params: p}
}

// Hash implements PasswordHasher.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify implements PasswordHasher.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, oops.Code(CodeInvalidHash).Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, oops.Code(CodeInvalidHash).Errorf("unsupported hash algorithm: %s", parts[1])
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code(CodeInvalidHash).Errorf("unsupported argon2 version %d", version)
	}
	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code(CodeInvalidHash).Errorf("threads value %d out of range", threads)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code(CodeInvalidHash).Wrap(err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if len(want) == 0 || len(want) > 1<<10 {
		return false, oops.Code(CodeInvalidHash).Errorf("invalid key length: %d", len(want))
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
