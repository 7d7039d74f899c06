// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
)

// Echo answers without a model. It is meant for local development of the
// client and for smoke-testing a deployment.
type Echo struct{}

// Name returns "echo".
func (Echo) Name() string { return KindEcho }

// Chat repeats the message.
func (Echo) Chat(_ context.Context, message string, image *Media) (string, error) {
	if image != nil {
		return outputText(fmt.Sprintf("You said: %s (with a %s image, %d bytes)", message, image.MIMEType, len(image.Data)), ErrNoOutput)
	}
	return outputText("You said: "+message, ErrNoOutput)
}

// Transcribe reports the audio size instead of its content.
func (Echo) Transcribe(_ context.Context, audio Media) (string, error) {
	if len(audio.Data) == 0 {
		return "", ErrNoTranscript
	}
	return fmt.Sprintf("(%d bytes of %s audio)", len(audio.Data), audio.MIMEType), nil
}
