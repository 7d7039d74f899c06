// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// GEMINI PROVIDER
// =============================================================================

const defaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the part of genai.Models the provider calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini talks to the Gemini API. Images and audio are sent as inline parts.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewGemini creates a Gemini provider. The API key is required.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(models contentGenerator, cfg Config) *Gemini {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	temp := float32(cfg.Temperature)
	if temp <= 0 {
		temp = 0.7
	}
	return &Gemini{models: models, model: model, temperature: temp}
}

// Name returns "gemini/<model>".
func (g *Gemini) Name() string {
	return KindGemini + "/" + g.model
}

// Chat answers a message.
func (g *Gemini) Chat(ctx context.Context, message string, image *Media) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(ChatPrompt(message, image != nil))}
	if image != nil {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}

	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(Persona, genai.RoleUser),
		Temperature:       &temp,
	}
	text, err := g.generate(ctx, parts, cfg)
	if err != nil {
		return "", errs.Backend("provider.chat", "Gemini request failed", err)
	}
	return outputText(text, ErrNoOutput)
}

// Transcribe returns the speech in audio.
func (g *Gemini) Transcribe(ctx context.Context, audio Media) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(TranscribePrompt),
		genai.NewPartFromBytes(audio.Data, audio.MIMEType),
	}
	temp := float32(0)
	text, err := g.generate(ctx, parts, &genai.GenerateContentConfig{Temperature: &temp})
	if err != nil {
		return "", errs.Backend("provider.transcribe", "Gemini request failed", err)
	}
	return outputText(text, ErrNoTranscript)
}

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}
