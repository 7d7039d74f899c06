// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session generates conversation session identifiers.
//
// Identifiers are random (version 4) UUIDs. When the system random source
// fails the generator falls back to a math/rand identifier of the same
// shape; the fallback is for uniqueness only and must never be used where
// unpredictability matters.
//
// # Usage
//
//	id := session.NewID()
//	if !session.Valid(saved) {
//	    saved = session.NewID()
//	}
package session
