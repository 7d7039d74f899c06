// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// newRandom is swapped in tests to simulate an unavailable random source.
var newRandom = uuid.NewRandom

// NewID returns a new session identifier.
func NewID() string {
	id, err := newRandom()
	if err != nil {
		return fallbackID()
	}
	return id.String()
}

// fallbackID builds xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx from math/rand.
func fallbackID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rand.UintN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Valid reports whether id looks like an identifier produced by NewID.
func Valid(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
