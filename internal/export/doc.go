// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a chat (its history entry plus message log) as
// Markdown, JSON or a plain transcript.
//
// # Key Types
//
//   - Conversation: the entry/messages pair being exported
//   - Exporter: common interface of the format writers
//   - Options: metadata, timestamps, output directory
//
// # Usage
//
//	conv := &export.Conversation{Entry: entry, Messages: msgs}
//	exp, err := export.New("markdown", nil)
//	path, err := export.ExportToFile(conv, exp, &export.Options{OutputDir: dir})
//
// Loading placeholders are never exported.
package export
