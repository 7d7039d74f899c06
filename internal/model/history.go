// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"sort"
	"time"
)

// MaxTitleLength is the maximum title length in runes.
const MaxTitleLength = 50

// =============================================================================
// HISTORY ENTRY
// =============================================================================

// HistoryEntry is the catalogue record for one conversation.
type HistoryEntry struct {
	SessionID           string    `json:"sessionId"`
	Title               string    `json:"title"`
	FirstMessageContent string    `json:"firstMessageContent,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	IsPinned            bool      `json:"isPinned"`
}

// historyEntryJSON mirrors HistoryEntry plus fields written by older builds.
type historyEntryJSON struct {
	SessionID           string    `json:"sessionId"`
	Title               string    `json:"title"`
	FirstMessageContent string    `json:"firstMessageContent"`
	FirstMessage        string    `json:"firstMessage"`
	Timestamp           time.Time `json:"timestamp"`
	IsPinned            bool      `json:"isPinned"`
}

// UnmarshalJSON accepts the current layout and the legacy one that only
// carried "firstMessage". An entry without any title gets "Chat <id prefix>".
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw historyEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.SessionID = raw.SessionID
	e.Timestamp = raw.Timestamp
	e.IsPinned = raw.IsPinned
	e.Title = raw.Title
	e.FirstMessageContent = raw.FirstMessageContent

	if e.Title == "" {
		e.Title = raw.FirstMessage
	}
	if e.FirstMessageContent == "" {
		e.FirstMessageContent = raw.FirstMessage
	}
	if e.Title == "" {
		e.Title = FallbackTitle(e.SessionID)
	}
	return nil
}

// FallbackTitle is the title shown for entries that never had one.
func FallbackTitle(sessionID string) string {
	prefix := sessionID
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return "Chat " + prefix
}

// =============================================================================
// ORDERING
// =============================================================================

// HistoryLess reports whether a sorts before b: pinned entries first, then
// descending timestamp.
func HistoryLess(a, b HistoryEntry) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	return a.Timestamp.After(b.Timestamp)
}

// SortHistory orders entries in place.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return HistoryLess(entries[i], entries[j])
	})
}

// IsHistorySorted reports whether entries already satisfy the ordering.
func IsHistorySorted(entries []HistoryEntry) bool {
	for i := 1; i < len(entries); i++ {
		if HistoryLess(entries[i], entries[i-1]) {
			return false
		}
	}
	return true
}
