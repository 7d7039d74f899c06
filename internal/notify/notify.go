// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify carries transient user notices ("toasts") from the
// session engine to whatever front-end is rendering it.
package notify

import "sync"

// Variant selects how prominently a notice is shown.
type Variant int

const (
	Default Variant = iota
	Destructive
)

// String returns the variant name.
func (v Variant) String() string {
	if v == Destructive {
		return "destructive"
	}
	return "default"
}

// Notice is one transient message.
type Notice struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier receives notices.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

// Notify calls f.
func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Info builds a default notice.
func Info(title, description string) Notice {
	return Notice{Title: title, Description: description}
}

// Error builds a destructive notice.
func Error(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: Destructive}
}

// Recorder keeps notices in memory. Front-ends without a live display and
// tests use it.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Drain returns and clears the recorded notices.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}
