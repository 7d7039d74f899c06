// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message      string `json:"message"`
	ImageDataURI string `json:"imageDataUri,omitempty"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// TranscribeRequest is the body of POST /api/transcribe.
type TranscribeRequest struct {
	AudioDataURI string `json:"audioDataUri"`
}

// TranscribeResponse is the body returned by POST /api/transcribe.
type TranscribeResponse struct {
	TranscribedText string `json:"transcribedText"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// INTERFACES
// =============================================================================

// Chatter sends one chat message and returns the model's reply.
type Chatter interface {
	SendChatMessage(ctx context.Context, req ChatRequest) (string, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, req TranscribeRequest) (string, error)
}

// Client is the full backend surface.
type Client interface {
	Chatter
	Transcriber
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyResponse is returned when the chat reply is blank.
	ErrEmptyResponse = &errs.Error{Kind: errs.KindBackendFailure, Op: "backend.chat", Msg: "Received an empty response from the AI."}

	// ErrEmptyTranscription is returned when transcription yields no text.
	ErrEmptyTranscription = &errs.Error{Kind: errs.KindBackendFailure, Op: "backend.transcribe", Msg: "Audio transcription returned no text."}
)
