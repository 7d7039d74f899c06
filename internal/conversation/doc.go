// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the per-session message logs.
//
// Each session's log is an ordered slice of model.Message persisted under
// storage.MessagesKey(sessionID). Every mutation rewrites the whole log
// immediately; there is no separate save step. A log that fails to decode
// loads as empty.
//
// # Key Types
//
//   - Store: load/append/replace/remove operations over session logs
//   - Update: partial update applied to one message by Replace
//
// # Usage
//
//	logs := conversation.New(kv, conversation.WithLogger(log))
//	_ = logs.Append(id, model.NewMessage(model.SenderUser, "hi"))
//	msgs := logs.Load(id)
package conversation
