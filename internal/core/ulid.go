// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID. IDs generated by one process are strictly
// increasing, so they double as allocation order.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseULID parses a ULID string.
func ParseULID(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").With("id", s).Wrap(err)
	}
	return id, nil
}

// IsZero reports whether id is the zero ULID.
func IsZero(id ulid.ULID) bool {
	return id.Compare(ulid.ULID{}) == 0
}
