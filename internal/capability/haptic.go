// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"io"
	"sync"
	"time"
)

// Haptic gives short physical or audible feedback.
type Haptic interface {
	// Pulse plays a vibration pattern. Empty means one short pulse.
	Pulse(pattern ...time.Duration)
}

// Bell emulates vibration with the terminal bell, one BEL per pulse.
type Bell struct {
	mu  sync.Mutex
	out io.Writer
}

// NewBell writes bells to out.
func NewBell(out io.Writer) *Bell {
	return &Bell{out: out}
}

// Pulse rings once for every "on" segment of pattern (even indexes).
func (b *Bell) Pulse(pattern ...time.Duration) {
	rings := 1
	if len(pattern) > 1 {
		rings = (len(pattern) + 1) / 2
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < rings; i++ {
		b.out.Write([]byte{'\a'})
	}
}

// NoHaptic ignores pulses.
type NoHaptic struct{}

func (NoHaptic) Pulse(...time.Duration) {}
