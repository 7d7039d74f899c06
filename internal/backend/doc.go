// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend defines the chat and transcription wire contract and an
// HTTP client for it.
//
// The backend is an opaque request/response service with two endpoints:
//
//	POST /api/chat        {"message", "imageDataUri"?}  -> {"response"}
//	POST /api/transcribe  {"audioDataUri"}              -> {"transcribedText"}
//
// Binary payloads travel as base64 data URIs. Any non-2xx status, malformed
// body or empty payload is a BackendFailure (see package errs).
//
// # Key Types
//
//   - Client: Chatter + Transcriber, the interface the session engine consumes
//   - HTTPClient: JSON-over-HTTP implementation with rate limiting and retries
//   - StatusError: a non-2xx response with the server's error message
//
// # Usage
//
//	c := backend.NewHTTPClient("http://localhost:8787", backend.WithTimeout(60*time.Second))
//	reply, err := c.SendChatMessage(ctx, backend.ChatRequest{Message: "hi"})
package backend
