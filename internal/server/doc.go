// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the EchoFlow backend HTTP API.
//
// The server answers chat messages and transcribes voice notes by delegating
// to a provider.Provider. Request and response bodies use the wire types in
// the backend package, so the CLI client and this server share one contract.
//
// # Endpoints
//
//   - POST /api/chat       - {message, imageDataUri?} -> {response}
//   - POST /api/transcribe - {audioDataUri} -> {transcribedText}
//   - GET  /health         - provider name, uptime and request counters
//
// Every failure is a JSON body {"error": "..."}. Non-POST requests to the API
// endpoints get 405, provider failures 500, and providers that cannot
// transcribe 501.
//
// # Middleware
//
//   - Panic recovery with stack logging
//   - Request logging (zap)
//   - Security headers (nosniff, frame deny, no-store)
//   - CORS for localhost origins by default
//   - Per-IP token bucket rate limiting (golang.org/x/time/rate)
//   - Request body size limit
//
// # Key Types
//
//   - Server: HTTP server wrapping a provider
//   - CORSConfig: allowed origins, methods and headers
//   - RateLimiter: per-client token buckets with idle eviction
//
// # Usage
//
//	p, err := provider.New(ctx, provider.Config{Kind: "gemini", APIKey: key})
//	if err != nil {
//		return err
//	}
//	srv := server.New(p, server.WithAddr(":9002"), server.WithLogger(log))
//	go srv.Start()
//	defer srv.Shutdown(context.Background())
package server
