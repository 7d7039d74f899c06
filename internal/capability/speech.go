// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/echoflow/internal/errs"
)

// Voice describes one speech synthesis voice.
type Voice struct {
	URI     string
	Name    string
	Lang    string
	Default bool
}

// Speaker plays text through a speech synthesizer.
type Speaker interface {
	Supported() bool

	// Voices lists the installed voices.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak starts speaking text and returns without waiting for playback.
	// Any speech already in progress is stopped first. A nil voice uses
	// the synthesizer default.
	Speak(ctx context.Context, text string, voice *Voice) error

	// Stop interrupts speech in progress.
	Stop()
}

// PickVoice chooses the voice to use: the saved one if still installed,
// otherwise a voice for lang whose name mentions Google, then any voice for
// lang, then the default voice, then the first one.
func PickVoice(voices []Voice, savedURI, lang string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	if savedURI != "" {
		for _, v := range voices {
			if v.URI == savedURI {
				return v, true
			}
		}
	}

	lang = strings.ToLower(lang)
	matches := func(v Voice) bool {
		return lang != "" && strings.HasPrefix(strings.ToLower(v.Lang), lang)
	}
	for _, v := range voices {
		if matches(v) && strings.Contains(strings.ToLower(v.Name), "google") {
			return v, true
		}
	}
	for _, v := range voices {
		if matches(v) {
			return v, true
		}
	}
	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return voices[0], true
}

// =============================================================================
// COMMAND SPEAKER
// =============================================================================

// CommandSpeaker drives a command-line synthesizer such as espeak-ng or
// macOS say. Placeholders "{voice}" and "{text}" in the speak command are
// substituted; arguments containing "{voice}" are dropped when no voice is
// chosen.
type CommandSpeaker struct {
	speak  []string
	voices []string

	mu      sync.Mutex
	current *exec.Cmd
}

// NewCommandSpeaker creates a speaker. voicesCmd may be empty when the
// synthesizer cannot list voices.
func NewCommandSpeaker(speakCmd, voicesCmd []string) *CommandSpeaker {
	return &CommandSpeaker{speak: speakCmd, voices: voicesCmd}
}

// Supported reports whether the speak command is installed.
func (s *CommandSpeaker) Supported() bool {
	if len(s.speak) == 0 {
		return false
	}
	_, err := exec.LookPath(s.speak[0])
	return err == nil
}

// Voices runs the listing command and parses its output.
func (s *CommandSpeaker) Voices(ctx context.Context) ([]Voice, error) {
	if !s.Supported() {
		return nil, errs.Unavailable("speech.voices", "speech synthesis is not available", nil)
	}
	if len(s.voices) == 0 {
		return nil, nil
	}

	out, err := exec.CommandContext(ctx, s.voices[0], s.voices[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	switch filepath.Base(s.voices[0]) {
	case "say":
		return parseSayVoices(string(out)), nil
	default:
		return parseEspeakVoices(string(out)), nil
	}
}

// Speak starts the synthesizer.
func (s *CommandSpeaker) Speak(ctx context.Context, text string, voice *Voice) error {
	if !s.Supported() {
		return errs.Unavailable("speech.speak", "speech synthesis is not available", nil)
	}
	s.Stop()

	var args []string
	for _, a := range s.speak[1:] {
		if strings.Contains(a, "{voice}") {
			if voice == nil || voice.URI == "" {
				// Also drop a preceding flag such as "-v".
				if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "-") {
					args = args[:n-1]
				}
				continue
			}
			a = strings.ReplaceAll(a, "{voice}", voice.URI)
		}
		args = append(args, strings.ReplaceAll(a, "{text}", text))
	}

	cmd := exec.Command(s.speak[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start speech: %w", err)
	}

	s.mu.Lock()
	s.current = cmd
	s.mu.Unlock()

	go func() {
		cmd.Wait()
		s.mu.Lock()
		if s.current == cmd {
			s.current = nil
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop kills speech in progress.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	cmd := s.current
	s.current = nil
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

// parseEspeakVoices parses `espeak-ng --voices` output:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func parseEspeakVoices(out string) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) < 4 {
			continue
		}
		voices = append(voices, Voice{URI: f[1], Lang: f[1], Name: f[3]})
	}
	if len(voices) > 0 {
		voices[0].Default = true
	}
	return voices
}

// parseSayVoices parses `say -v ?` output:
//
//	Alex                en_US    # Most people recognize me by my voice.
func parseSayVoices(out string) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		f := strings.Fields(line)
		if len(f) < 2 {
			continue
		}
		lang := f[len(f)-1]
		name := strings.Join(f[:len(f)-1], " ")
		voices = append(voices, Voice{
			URI:  name,
			Name: name,
			Lang: strings.ReplaceAll(lang, "_", "-"),
		})
	}
	return voices
}

// NoSpeaker is used when speech is disabled.
type NoSpeaker struct{}

func (NoSpeaker) Supported() bool { return false }

func (NoSpeaker) Voices(context.Context) ([]Voice, error) {
	return nil, errs.Unavailable("speech.voices", "speech synthesis is not available", nil)
}

func (NoSpeaker) Speak(context.Context, string, *Voice) error {
	return errs.Unavailable("speech.speak", "speech synthesis is not available", nil)
}

func (NoSpeaker) Stop() {}
