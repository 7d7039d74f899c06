// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Media is an inline image or audio payload.
type Media struct {
	MIMEType string
	Data     []byte
}

// Provider answers chat messages and transcribes audio.
type Provider interface {
	// Name identifies the provider in logs and /health.
	Name() string

	// Chat answers message, considering image when it is non-nil.
	Chat(ctx context.Context, message string, image *Media) (string, error)

	// Transcribe returns the text spoken in audio.
	Transcribe(ctx context.Context, audio Media) (string, error)
}

// Failure messages returned to clients.
const (
	NoOutputMessage     = "Response generation failed, received no output from the model."
	NoTranscriptMessage = "Transcription failed, received no output from the model."
)

var (
	// ErrNoOutput is returned when the model produced no text.
	ErrNoOutput = &errs.Error{Kind: errs.KindBackendFailure, Op: "provider.chat", Msg: NoOutputMessage}

	// ErrNoTranscript is returned when transcription produced no text.
	ErrNoTranscript = &errs.Error{Kind: errs.KindBackendFailure, Op: "provider.transcribe", Msg: NoTranscriptMessage}

	// ErrTranscriptionUnsupported is returned by providers without audio input.
	ErrTranscriptionUnsupported = &errs.Error{Kind: errs.KindCapabilityUnavailable, Op: "provider.transcribe", Msg: "audio transcription is not supported by this provider"}
)

// =============================================================================
// PROMPTS
// =============================================================================

// Persona is the system instruction for chat.
const Persona = "You are an AI assistant named EchoFlow. You are friendly, helpful and here to assist."

// TranscribePrompt asks for a verbatim transcript.
const TranscribePrompt = "Transcribe the following audio accurately. Respond only with the transcribed text."

// ChatPrompt is the user turn sent to the model.
func ChatPrompt(message string, withImage bool) string {
	var sb strings.Builder
	sb.WriteString("Respond to the following user message.\n")
	if withImage {
		sb.WriteString("Also consider the image the user has provided.\n")
	}
	sb.WriteString("User message: ")
	sb.WriteString(message)
	return sb.String()
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// Provider kinds accepted by New.
const (
	KindGemini = "gemini"
	KindOpenAI = "openai"
	KindEcho   = "echo"
)

// Config selects and configures a provider.
type Config struct {
	Kind        string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
}

// New builds the provider named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindGemini, "":
		return NewGemini(ctx, cfg)
	case KindOpenAI, "ollama":
		return NewOpenAI(cfg)
	case KindEcho:
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Kind)
	}
}

// outputText trims a model reply and maps an empty one to failure.
func outputText(text string, empty error) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", empty
	}
	return text, nil
}
