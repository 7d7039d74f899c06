// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app holds the EchoFlow application state: which chat is active,
// the user's preferences, and the components that act on chats.
//
// Front-ends (the REPL, one-shot commands) talk to an App instead of to the
// conversation, history, turn and voice packages directly. The active
// session pointer lives here and is persisted on every change so the next
// start reopens the same chat.
//
// # Key Types
//
//   - App: application state and chat operations
//   - Deps: store, backend and capabilities an App is built from
//   - Preferences: saved voice and accent color
//   - Accent: one of Blue, Green, Purple, Orange, Rose
//
// # Usage
//
//	a := app.New(app.Deps{Store: kv, Chat: client, Transcriber: client},
//	    app.WithNotifier(n), app.WithLogger(log))
//	defer a.Close()
//
//	if err := a.Send(ctx, "hello", nil); err != nil { ... }
//	for _, m := range a.Messages() { ... }
//
// A reply that arrives after the user moved to another chat is still
// recorded in the chat it was asked in; it is only read aloud when that
// chat is still active.
package app
