// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/capability"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/turn"
)

// Texts recorded in the conversation for a voice note.
const (
	NoteText       = "🎤 Voice note sent"
	ProcessingText = "Processing audio..."
	ThinkingText   = turn.PlaceholderText
)

const defaultTickInterval = time.Second

// State is the recorder state.
type State int

const (
	Stopped State = iota
	Recording
)

// String returns the state name.
func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "stopped"
}

var (
	// ErrEmptyRecording is returned by Stop when nothing was captured.
	ErrEmptyRecording = &errs.Error{Kind: errs.KindValidation, Op: "voice", Msg: "nothing was recorded"}

	// ErrNotRecording is returned by Stop in the Stopped state.
	ErrNotRecording = &errs.Error{Kind: errs.KindValidation, Op: "voice", Msg: "not recording"}

	// ErrAlreadyRecording is returned by Start in the Recording state.
	ErrAlreadyRecording = &errs.Error{Kind: errs.KindValidation, Op: "voice", Msg: "already recording"}
)

// Orchestrator is the turn surface the pipeline needs.
type Orchestrator interface {
	Begin(sessionID string) (*turn.Turn, error)
	InFlight(sessionID string) bool
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline owns one recorder.
type Pipeline struct {
	rec      capability.Recorder
	tr       backend.Transcriber
	orch     Orchestrator
	notifier notify.Notifier
	log      *zap.Logger
	interval time.Duration
	onTick   func(elapsed time.Duration)

	mu        sync.Mutex
	state     State
	sessionID string
	seconds   int
	stopTick  context.CancelFunc
	tickDone  chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets where notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithTickInterval sets how often the elapsed counter advances by one
// second. Tests shorten it.
func WithTickInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTickHook observes the elapsed counter after each tick.
func WithTickHook(fn func(elapsed time.Duration)) Option {
	return func(p *Pipeline) { p.onTick = fn }
}

// New creates a Pipeline.
func New(rec capability.Recorder, tr backend.Transcriber, orch Orchestrator, opts ...Option) *Pipeline {
	p := &Pipeline{
		rec:      rec,
		tr:       tr,
		orch:     orch,
		notifier: notify.Discard,
		log:      zap.NewNop(),
		interval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the recorder state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SessionID returns the session the current recording belongs to.
func (p *Pipeline) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Elapsed returns the recording time at one-second resolution.
func (p *Pipeline) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.seconds) * time.Second
}

// Supported reports whether a recorder is available.
func (p *Pipeline) Supported() bool {
	return p.rec != nil && p.rec.Supported()
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Start moves Stopped -> Recording for sessionID. If the recorder cannot be
// acquired the pipeline stays Stopped and a notice is raised.
func (p *Pipeline) Start(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return turn.ErrNoSession
	}
	if p.orch.InFlight(sessionID) {
		return turn.ErrTurnInFlight
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Recording {
		return ErrAlreadyRecording
	}

	if p.rec == nil {
		err := errs.Unavailable("voice.start", "audio recording is not available", nil)
		p.notifier.Notify(notify.Error("Microphone Error", errs.Reason(err)))
		return err
	}
	if err := p.rec.Start(ctx); err != nil {
		p.log.Warn("recorder start failed", zap.Error(err))
		p.notifier.Notify(notify.Error("Microphone Error", "Could not access the microphone. Check permissions."))
		return err
	}

	p.state = Recording
	p.sessionID = sessionID
	p.seconds = 0
	p.startTicker()
	p.log.Debug("recording started", zap.String("session", sessionID))
	return nil
}

// Stop moves Recording -> Stopped, then transcribes the note and runs the
// turn. An empty recording raises a notice and records nothing.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Recording {
		p.mu.Unlock()
		return ErrNotRecording
	}
	sessionID := p.sessionID
	p.state = Stopped
	p.sessionID = ""
	halt := p.detachTicker()
	p.mu.Unlock()
	halt()

	audio, mimeType, err := p.rec.Stop()
	if err != nil {
		p.notifier.Notify(notify.Error("Error", "Could not process the audio."))
		return fmt.Errorf("stop recording: %w", err)
	}
	if len(audio) == 0 {
		p.notifier.Notify(notify.Info("Empty Recording", "No audio was recorded."))
		return ErrEmptyRecording
	}

	return p.process(ctx, sessionID, backend.EncodeDataURI(mimeType, audio))
}

// Cancel discards a recording in progress. It is a no-op when Stopped.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	if p.state != Recording {
		p.mu.Unlock()
		return
	}
	p.state = Stopped
	p.sessionID = ""
	halt := p.detachTicker()
	p.mu.Unlock()

	halt()
	p.rec.Cancel()
	p.log.Debug("recording cancelled")
}

// process runs the voice turn: the note is recorded as the user message,
// transcribed, then sent to the backend.
func (p *Pipeline) process(ctx context.Context, sessionID, audioURI string) error {
	t, err := p.orch.Begin(sessionID)
	if err != nil {
		return err
	}
	defer t.End()

	if err := t.AppendUser(NoteText, history.DeriveTitle(NoteText, ""), NoteText); err != nil {
		return err
	}
	if err := t.Placeholder(ProcessingText); err != nil {
		return t.Fail(err)
	}

	t.Awaiting()
	text, err := p.tr.TranscribeAudio(ctx, backend.TranscribeRequest{AudioDataURI: audioURI})
	if err == nil && strings.TrimSpace(text) == "" {
		err = backend.ErrEmptyTranscription
	}
	if err != nil {
		return t.Fail(err)
	}
	if t.Abandoned() {
		p.log.Info("voice note dropped, chat was deleted", zap.String("session", sessionID))
		return nil
	}

	if err := t.UpdatePlaceholder(ThinkingText); err != nil {
		p.log.Warn("placeholder update failed", zap.Error(err))
	}
	_, err = t.Await(ctx, backend.ChatRequest{Message: text})
	return err
}

// =============================================================================
// TICKER
// =============================================================================

// startTicker launches the elapsed-seconds counter. Callers hold p.mu.
func (p *Pipeline) startTicker() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.stopTick, p.tickDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.mu.Lock()
				if ctx.Err() != nil {
					p.mu.Unlock()
					return
				}
				p.seconds++
				elapsed := time.Duration(p.seconds) * time.Second
				fn := p.onTick
				p.mu.Unlock()
				if fn != nil {
					fn(elapsed)
				}
			}
		}
	}()
}

// detachTicker takes the ticker handles under p.mu and returns a func that
// stops it and waits, to be called after p.mu is released.
func (p *Pipeline) detachTicker() func() {
	cancel, done := p.stopTick, p.tickDone
	p.stopTick, p.tickDone = nil, nil
	return func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
	}
}

// FormatElapsed renders d as MM:SS.
func FormatElapsed(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
