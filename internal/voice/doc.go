// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice records a voice note, transcribes it and hands the text to
// the turn orchestrator.
//
// The pipeline is a two-state machine, Stopped and Recording. While
// recording a ticker counts elapsed seconds; the ticker goroutine is
// cancelled on every exit path (stop, cancel, failure).
//
// # Usage
//
//	p := voice.New(recorder, client, orch, voice.WithNotifier(n))
//	if err := p.Start(ctx, sessionID); err != nil {
//	    return err
//	}
//	// ... later
//	err := p.Stop(ctx) // transcribes and runs the turn
package voice
