// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capability wraps the platform features the chat engine uses but
// does not implement: audio recording, speech synthesis, haptic feedback,
// clipboard and share.
//
// Every capability reports Supported() and is checked at call time. An
// unavailable capability yields a CapabilityUnavailable error (package
// errs) and the calling feature degrades instead of failing the session.
//
// # Key Types
//
//   - Recorder / ExecRecorder / FileRecorder: audio capture
//   - Speaker / CommandSpeaker: text-to-speech with voice enumeration
//   - Haptic / Bell: short feedback pulses
//   - Clipboard / SystemClipboard: copy text
//   - Sharer / CommandSharer: hand text to an external share target
//
// # Usage
//
//	rec := capability.NewExecRecorder([]string{"arecord", "-q", "-f", "cd", "-t", "wav", "{file}"}, "audio/wav")
//	if err := rec.Start(ctx); err != nil {
//	    return err // errs.KindCapabilityUnavailable when arecord is missing
//	}
//	audio, mime, err := rec.Stop()
package capability
