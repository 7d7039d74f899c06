// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/capability"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/storage"
)

const voicesTimeout = 5 * time.Second

// =============================================================================
// PREFERENCES
// =============================================================================

func (a *App) loadPreferences() Preferences {
	p := DefaultPreferences()
	if _, err := storage.GetJSON(a.kv, storage.KeyPreferences, &p); err != nil {
		a.log.Warn("preferences unreadable, using defaults", zap.Error(err))
		return DefaultPreferences()
	}
	return p.normalize()
}

// updatePreferences applies fn and persists the result.
func (a *App) updatePreferences(fn func(*Preferences)) error {
	a.mu.Lock()
	next := a.prefs
	fn(&next)
	if err := storage.SetJSON(a.kv, storage.KeyPreferences, next); err != nil {
		a.mu.Unlock()
		return err
	}
	a.prefs = next
	a.mu.Unlock()
	return nil
}

// Preferences returns the current preferences.
func (a *App) Preferences() Preferences {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prefs
}

// SetAccent stores the accent color.
func (a *App) SetAccent(name string) error {
	accent, err := ParseAccent(name)
	if err != nil {
		return err
	}
	a.pulse()
	return a.updatePreferences(func(p *Preferences) { p.Accent = accent })
}

// =============================================================================
// VOICES
// =============================================================================

// Voices lists the synthesizer voices. The list is read once. When no voice
// was saved, or the saved one is gone, the default choice is saved.
func (a *App) Voices(ctx context.Context) ([]capability.Voice, error) {
	a.mu.RLock()
	if a.voicesOK {
		v := a.voices
		a.mu.RUnlock()
		return v, nil
	}
	a.mu.RUnlock()

	if !a.speaker.Supported() {
		return nil, errs.Unavailable("app.voices", "speech synthesis is not available", nil)
	}
	voices, err := a.speaker.Voices(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.voices, a.voicesOK = voices, true
	saved := a.prefs.VoiceURI
	a.mu.Unlock()

	if pick, ok := capability.PickVoice(voices, saved, a.cfg.lang); ok && pick.URI != saved {
		if err := a.updatePreferences(func(p *Preferences) { p.VoiceURI = pick.URI }); err != nil {
			a.log.Warn("save default voice", zap.Error(err))
		}
	}
	return voices, nil
}

// SelectVoice saves the voice used for playback.
func (a *App) SelectVoice(ctx context.Context, uri string) error {
	voices, err := a.Voices(ctx)
	if err != nil {
		return err
	}
	for _, v := range voices {
		if v.URI == uri {
			a.pulse()
			return a.updatePreferences(func(p *Preferences) { p.VoiceURI = uri })
		}
	}
	return errs.Validation("app.voice", "no installed voice "+uri)
}

// CurrentVoice returns the voice playback would use.
func (a *App) CurrentVoice(ctx context.Context) (capability.Voice, bool) {
	voices, err := a.Voices(ctx)
	if err != nil {
		return capability.Voice{}, false
	}
	return capability.PickVoice(voices, a.Preferences().VoiceURI, a.cfg.lang)
}

// Speak reads text aloud with the chosen voice.
func (a *App) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	voices, err := a.Voices(ctx)
	if err != nil {
		return err
	}
	if len(voices) == 0 {
		a.notifier.Notify(notify.Info("Voice Unavailable", "No speech synthesis voices were found."))
		return errs.Unavailable("app.speak", "no voices installed", nil)
	}
	v, _ := capability.PickVoice(voices, a.Preferences().VoiceURI, a.cfg.lang)
	return a.speaker.Speak(ctx, text, &v)
}

// StopSpeaking interrupts playback.
func (a *App) StopSpeaking() {
	a.speaker.Stop()
}

// speak is the reply autoplay hook.
func (a *App) speak(text string) {
	if !a.cfg.autoplay || !a.speaker.Supported() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), voicesTimeout)
	defer cancel()
	if err := a.Speak(ctx, text); err != nil {
		a.log.Debug("autoplay skipped", zap.Error(err))
	}
}
