// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// GEMINI
// =============================================================================

type fakeGenerator struct {
	reply string
	err   error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func TestGemini_Chat(t *testing.T) {
	gen := &fakeGenerator{reply: "  Hi there!  "}
	g := newGemini(gen, Config{})

	got, err := g.Chat(context.Background(), "hello", &Media{MIMEType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", got)
	assert.Equal(t, defaultGeminiModel, gen.model)
	assert.Equal(t, "gemini/"+defaultGeminiModel, g.Name())

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "User message: hello")
	assert.Contains(t, parts[0].Text, "image")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte{1, 2, 3}, parts[1].InlineData.Data)

	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, Persona, gen.config.SystemInstruction.Parts[0].Text)
}

func TestGemini_EmptyOutput(t *testing.T) {
	g := newGemini(&fakeGenerator{reply: "   "}, Config{Model: "m"})

	_, err := g.Chat(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrNoOutput)
	assert.Equal(t, NoOutputMessage, errs.Reason(err))

	_, err = g.Transcribe(context.Background(), Media{MIMEType: "audio/webm", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestGemini_Failure(t *testing.T) {
	g := newGemini(&fakeGenerator{err: errors.New("quota exceeded")}, Config{Model: "m"})

	_, err := g.Chat(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindBackendFailure))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGemini_Transcribe(t *testing.T) {
	gen := &fakeGenerator{reply: "hello world"}
	g := newGemini(gen, Config{Model: "m"})

	got, err := g.Transcribe(context.Background(), Media{MIMEType: "audio/webm", Data: []byte("opus")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	parts := gen.contents[0].Parts
	assert.Equal(t, TranscribePrompt, parts[0].Text)
	assert.Equal(t, "audio/webm", parts[1].InlineData.MIMEType)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), Config{})
	assert.Error(t, err)
}

// =============================================================================
// OPENAI
// =============================================================================

type fakeModel struct {
	resp *llms.ContentResponse
	err  error
	msgs []llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.msgs = msgs
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestOpenAI_Chat(t *testing.T) {
	m := &fakeModel{resp: reply("Sure.")}
	o := newOpenAI(m, Config{Model: "llama3.2"})

	got, err := o.Chat(context.Background(), "describe", &Media{MIMEType: "image/jpeg", Data: []byte("jpg")})
	require.NoError(t, err)
	assert.Equal(t, "Sure.", got)
	assert.Equal(t, "openai/llama3.2", o.Name())

	require.Len(t, m.msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.msgs[1].Role)
	require.Len(t, m.msgs[1].Parts, 2)
	img, ok := m.msgs[1].Parts[1].(llms.ImageURLContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(img.URL, "data:image/jpeg;base64,"))
}

func TestOpenAI_NoChoices(t *testing.T) {
	o := newOpenAI(&fakeModel{resp: &llms.ContentResponse{}}, Config{Model: "m"})
	_, err := o.Chat(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrNoOutput)

	o = newOpenAI(&fakeModel{resp: reply("")}, Config{Model: "m"})
	_, err = o.Chat(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestOpenAI_TranscribeUnsupported(t *testing.T) {
	o := newOpenAI(&fakeModel{}, Config{Model: "m"})
	_, err := o.Transcribe(context.Background(), Media{Data: []byte("x")})
	assert.True(t, errs.IsKind(err, errs.KindCapabilityUnavailable))
}

func TestNewOpenAI_RequiresModel(t *testing.T) {
	_, err := NewOpenAI(Config{})
	assert.Error(t, err)
}

// =============================================================================
// ECHO AND SELECTION
// =============================================================================

func TestEcho(t *testing.T) {
	got, err := Echo{}.Chat(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "You said: ping", got)

	_, err = Echo{}.Transcribe(context.Background(), Media{})
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestNew(t *testing.T) {
	p, err := New(context.Background(), Config{Kind: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name())

	p, err = New(context.Background(), Config{Kind: "ollama", Model: "llama3.2", BaseURL: "http://127.0.0.1:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai/llama3.2", p.Name())

	_, err = New(context.Background(), Config{Kind: "bard"})
	assert.Error(t, err)
}

func TestChatPrompt(t *testing.T) {
	assert.Equal(t, "Respond to the following user message.\nUser message: hi", ChatPrompt("hi", false))
	assert.Contains(t, ChatPrompt("hi", true), "image the user has provided")
}
