// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across echoflow.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - TruncateRunes: rune-safe truncation without ellipsis (titles)
//   - Ellipsize: rune-safe truncation with a trailing "..." (previews)
//
// # Usage
//
//	title := util.TruncateRunes(text, 50)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
