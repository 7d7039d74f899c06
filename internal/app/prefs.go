// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// ACCENT
// =============================================================================

// Accent is the UI highlight color.
type Accent string

const (
	AccentBlue   Accent = "Blue"
	AccentGreen  Accent = "Green"
	AccentPurple Accent = "Purple"
	AccentOrange Accent = "Orange"
	AccentRose   Accent = "Rose"
)

// Accents lists the selectable accents in display order. The first is the
// default.
var Accents = []Accent{AccentBlue, AccentGreen, AccentPurple, AccentOrange, AccentRose}

var accentColors = map[Accent]string{
	AccentBlue:   "#3C83F6",
	AccentGreen:  "#21C45D",
	AccentPurple: "#8242F0",
	AccentOrange: "#F98C1F",
	AccentRose:   "#E92063",
}

// ParseAccent matches name case-insensitively against Accents.
func ParseAccent(name string) (Accent, error) {
	for _, a := range Accents {
		if strings.EqualFold(strings.TrimSpace(name), string(a)) {
			return a, nil
		}
	}
	return "", errs.Validation("app.accent", "unknown accent "+strings.TrimSpace(name))
}

// Color returns the accent as a hex color. Unknown accents use Blue.
func (a Accent) Color() string {
	if c, ok := accentColors[a]; ok {
		return c
	}
	return accentColors[AccentBlue]
}

// =============================================================================
// PREFERENCES
// =============================================================================

// Preferences are the persisted user choices.
type Preferences struct {
	VoiceURI string `json:"voiceURI,omitempty"`
	Accent   Accent `json:"accent"`
}

// DefaultPreferences returns the preferences used before anything is saved.
func DefaultPreferences() Preferences {
	return Preferences{Accent: Accents[0]}
}

// normalize replaces values that no longer parse with defaults.
func (p Preferences) normalize() Preferences {
	if a, err := ParseAccent(string(p.Accent)); err == nil {
		p.Accent = a
	} else {
		p.Accent = Accents[0]
	}
	return p
}
