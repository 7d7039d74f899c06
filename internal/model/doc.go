// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and history.
//
// This package defines the core domain types shared by the session engine,
// the storage layer and the front-ends.
//
// # Key Types
//
//   - Message: single chat message with sender, text, timestamp and loading flag
//   - Sender: message author enumeration (user, bot, system)
//   - HistoryEntry: catalogue record for one conversation (title, preview, pin)
//
// # Usage
//
// Create messages:
//
//	msg := model.NewMessage(model.SenderUser, "Hello!")
//	placeholder := model.NewPlaceholder("Thinking...")
//
// Order a history index:
//
//	model.SortHistory(entries) // pinned first, newest first
package model
