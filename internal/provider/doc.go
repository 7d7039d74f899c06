// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider adapts model APIs to the two operations the EchoFlow
// backend serves: answering a chat message (optionally with an image) and
// transcribing a voice note.
//
// # Key Types
//
//   - Provider: Chat and Transcribe
//   - Gemini: Gemini API via google.golang.org/genai
//   - OpenAI: OpenAI-compatible endpoints via langchaingo
//   - Echo: model-free stand-in
//
// # Usage
//
//	p, err := provider.New(ctx, provider.Config{Kind: "gemini", APIKey: key})
//	reply, err := p.Chat(ctx, "hello", nil)
package provider
