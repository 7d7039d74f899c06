// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history maintains the ordered, searchable catalogue of chats.
//
// The index holds one HistoryEntry per session that has received a user
// message. It is kept sorted pinned-first, then newest-first, and is written
// back to storage after every mutation.
//
// # Key Types
//
//   - Index: the catalogue with upsert, touch, rename, pin, delete and search
//   - SessionLog: the message-log operations the index depends on
//
// # Usage
//
//	idx := history.Open(kv, history.WithSessionLog(logs))
//	title := history.DeriveTitle(text, attachmentName)
//	_ = idx.UpsertOnFirstUserMessage(id, title, displayed)
//	for _, e := range idx.Search("golang") {
//	    fmt.Println(e.Title)
//	}
package history
