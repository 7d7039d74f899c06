// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn drives one request/response cycle against the backend.
//
// A turn moves through Idle -> Submitting -> AwaitingBackend ->
// ResolvedSuccess | ResolvedError -> Idle. At most one turn is in flight per
// session; a second submit while one is pending is rejected with
// ErrTurnInFlight and changes nothing.
//
// Within a turn the user message is appended and the history index updated
// before the backend is called, and the placeholder is removed before the
// resolved message is appended. Every failure ends up in the log as a
// system message "Error: <reason>" plus a destructive notice.
//
// Replies are always written to the session that started the turn, even if
// the user has switched to another chat in the meantime.
//
// # Key Types
//
//   - Orchestrator: owns per-session turn state
//   - Turn: the low-level steps, used directly by the voice pipeline
//   - Input / Attachment: what the user submitted
//
// # Usage
//
//	o := turn.New(logs, idx, client, turn.WithNotifier(n))
//	err := o.Submit(ctx, turn.Input{SessionID: id, Text: "hello"})
package turn
