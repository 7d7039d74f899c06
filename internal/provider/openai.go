// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// OPENAI-COMPATIBLE PROVIDER
// =============================================================================

// OpenAI talks to any OpenAI-compatible chat endpoint (OpenAI, Ollama,
// llama.cpp server). Images are sent as data-URI image parts. Transcription
// is not supported.
type OpenAI struct {
	llm         llms.Model
	model       string
	temperature float64
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	token := cfg.APIKey
	if token == "" {
		// Local servers ignore the key but the client requires one.
		token = "unused"
	}

	opts := []openai.Option{openai.WithToken(token), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	return newOpenAI(llm, cfg), nil
}

func newOpenAI(llm llms.Model, cfg Config) *OpenAI {
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.7
	}
	return &OpenAI{llm: llm, model: cfg.Model, temperature: temp}
}

// Name returns "openai/<model>".
func (o *OpenAI) Name() string {
	return KindOpenAI + "/" + o.model
}

// Chat answers a message.
func (o *OpenAI) Chat(ctx context.Context, message string, image *Media) (string, error) {
	user := llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextContent{Text: ChatPrompt(message, image != nil)}},
	}
	if image != nil {
		user.Parts = append(user.Parts, llms.ImageURLContent{URL: backend.EncodeDataURI(image.MIMEType, image.Data)})
	}
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, Persona),
		user,
	}

	resp, err := o.llm.GenerateContent(ctx, msgs, llms.WithTemperature(o.temperature))
	if err != nil {
		return "", errs.Backend("provider.chat", "model request failed", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoOutput
	}
	return outputText(resp.Choices[0].Content, ErrNoOutput)
}

// Transcribe is not available on chat-completion endpoints.
func (o *OpenAI) Transcribe(context.Context, Media) (string, error) {
	return "", ErrTranscriptionUnsupported
}
