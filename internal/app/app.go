// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/capability"
	"github.com/jeranaias/echoflow/internal/conversation"
	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/session"
	"github.com/jeranaias/echoflow/internal/storage"
	"github.com/jeranaias/echoflow/internal/turn"
	"github.com/jeranaias/echoflow/internal/voice"
)

// hapticTap is the pulse played on every user action.
const hapticTap = 50 * time.Millisecond

// Deps are the collaborators an App is built from. Nil capabilities are
// replaced by their unsupported stand-ins.
type Deps struct {
	Store       storage.Store
	Chat        backend.Chatter
	Transcriber backend.Transcriber
	Recorder    capability.Recorder
	Speaker     capability.Speaker
	Haptic      capability.Haptic
	Clipboard   capability.Clipboard
	Sharer      capability.Sharer
}

// App is the application state: the active session pointer, preferences and
// the components that act on chats.
type App struct {
	kv       storage.Store
	logs     *conversation.Store
	index    *history.Index
	turns    *turn.Orchestrator
	voice    *voice.Pipeline
	speaker  capability.Speaker
	haptic   capability.Haptic
	clip     capability.Clipboard
	sharer   capability.Sharer
	notifier notify.Notifier
	log      *zap.Logger
	cfg      options

	mu       sync.RWMutex
	active   string
	prefs    Preferences
	voices   []capability.Voice
	voicesOK bool
}

// =============================================================================
// OPTIONS
// =============================================================================

type options struct {
	logger       *zap.Logger
	notifier     notify.Notifier
	now          func() time.Time
	lang         string
	autoplay     bool
	tickInterval time.Duration
	onTick       func(time.Duration)
	onMessages   func(sessionID string, msgs []model.Message)
	onState      func(sessionID string, s turn.State)
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotifier sets where notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClock overrides time.Now for message and history timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLanguage sets the preferred speech language prefix, e.g. "en".
func WithLanguage(lang string) Option {
	return func(o *options) { o.lang = lang }
}

// WithAutoplay enables reading replies aloud.
func WithAutoplay(on bool) Option {
	return func(o *options) { o.autoplay = on }
}

// WithTickInterval sets the recording counter interval.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

// WithTickHook observes the recording counter.
func WithTickHook(fn func(elapsed time.Duration)) Option {
	return func(o *options) { o.onTick = fn }
}

// WithMessagesHook observes every change to the active session's log. fn
// runs while the log is being written and must not call back into the App.
func WithMessagesHook(fn func(sessionID string, msgs []model.Message)) Option {
	return func(o *options) { o.onMessages = fn }
}

// WithStateHook observes turn state changes of every session.
func WithStateHook(fn func(sessionID string, s turn.State)) Option {
	return func(o *options) { o.onState = fn }
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// New builds an App over deps.Store and restores the last active session.
func New(deps Deps, opts ...Option) *App {
	cfg := options{
		logger:   zap.NewNop(),
		notifier: notify.Discard,
		now:      time.Now,
		lang:     "en",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &App{
		kv:       deps.Store,
		speaker:  deps.Speaker,
		haptic:   deps.Haptic,
		clip:     deps.Clipboard,
		sharer:   deps.Sharer,
		notifier: cfg.notifier,
		log:      cfg.logger,
		cfg:      cfg,
	}
	if a.speaker == nil {
		a.speaker = capability.NoSpeaker{}
	}
	if a.haptic == nil {
		a.haptic = capability.NoHaptic{}
	}
	if a.clip == nil {
		a.clip = capability.SystemClipboard{}
	}
	if a.sharer == nil {
		a.sharer = capability.NoSharer{}
	}

	a.logs = conversation.New(a.kv,
		conversation.WithLogger(cfg.logger),
		conversation.WithObserver(a.messagesChanged),
	)
	a.index = history.Open(a.kv,
		history.WithSessionLog(a.logs),
		history.WithClock(cfg.now),
		history.WithLogger(cfg.logger),
	)
	a.turns = turn.New(a.logs, a.index, deps.Chat,
		turn.WithNotifier(cfg.notifier),
		turn.WithLogger(cfg.logger),
		turn.WithClock(cfg.now),
		turn.WithSpeech(a.ActiveSessionID, a.speak),
		turn.WithStateHook(cfg.onState),
	)

	rec := deps.Recorder
	if rec == nil {
		rec = capability.NoRecorder{}
	}
	a.voice = voice.New(rec, deps.Transcriber, a.turns,
		voice.WithNotifier(cfg.notifier),
		voice.WithLogger(cfg.logger),
		voice.WithTickInterval(cfg.tickInterval),
		voice.WithTickHook(cfg.onTick),
	)

	a.prefs = a.loadPreferences()
	a.sweep()
	a.restoreActive()
	return a
}

// restoreActive reopens the last active session when it still has a history
// entry; otherwise a fresh session starts.
func (a *App) restoreActive() {
	id, ok, err := a.kv.Get(storage.KeyLastActiveSession)
	if err != nil {
		a.log.Warn("read last active session", zap.Error(err))
	}
	if !ok || !session.Valid(id) || !a.index.Contains(id) {
		id = session.NewID()
	}
	a.setActive(id)
}

// sweep drops loading placeholders left behind by an interrupted process and
// session logs that no history entry refers to.
func (a *App) sweep() {
	for _, e := range a.index.Entries() {
		if n, err := a.logs.PruneLoading(e.SessionID); err != nil {
			a.log.Warn("prune placeholders", zap.String("session", e.SessionID), zap.Error(err))
		} else if n > 0 {
			a.log.Info("pruned stale placeholders", zap.String("session", e.SessionID), zap.Int("count", n))
		}
	}

	ids, err := storage.SessionIDs(a.kv)
	if err != nil {
		a.log.Warn("list session logs", zap.Error(err))
		return
	}
	for _, id := range ids {
		if a.index.Contains(id) {
			continue
		}
		if err := a.logs.Delete(id); err != nil {
			a.log.Warn("delete orphan log", zap.String("session", id), zap.Error(err))
			continue
		}
		a.log.Debug("deleted orphan log", zap.String("session", id))
	}
}

// Close stops speech and discards a recording in progress. The store is
// owned by the caller.
func (a *App) Close() {
	a.voice.Cancel()
	a.speaker.Stop()
}

// =============================================================================
// ACTIVE SESSION
// =============================================================================

// ActiveSessionID returns the session on screen.
func (a *App) ActiveSessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// setActive moves the pointer and persists it.
func (a *App) setActive(id string) {
	a.mu.Lock()
	a.active = id
	a.mu.Unlock()

	if err := a.kv.Set(storage.KeyLastActiveSession, id); err != nil {
		a.log.Warn("persist last active session", zap.String("session", id), zap.Error(err))
	}
	a.log.Debug("active session", zap.String("session", id))
}

// Messages returns the active session's log.
func (a *App) Messages() []model.Message {
	return a.logs.Load(a.ActiveSessionID())
}

// Busy reports whether the active session awaits a reply.
func (a *App) Busy() bool {
	return a.turns.InFlight(a.ActiveSessionID())
}

// TurnState returns the active session's turn state.
func (a *App) TurnState() turn.State {
	return a.turns.State(a.ActiveSessionID())
}

func (a *App) messagesChanged(sessionID string, msgs []model.Message) {
	if a.cfg.onMessages == nil || sessionID != a.ActiveSessionID() {
		return
	}
	a.cfg.onMessages(sessionID, msgs)
}

func (a *App) pulse() {
	a.haptic.Pulse(hapticTap)
}

// =============================================================================
// WATCH
// =============================================================================

// Watcher is implemented by stores that report writes made by other
// processes.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}

// Watch follows external writes until ctx is done: the history index is
// reloaded and the active session's observer is refreshed. It returns nil
// at once when the store cannot be watched.
func (a *App) Watch(ctx context.Context) error {
	w, ok := a.kv.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func(key string) {
		switch {
		case key == storage.KeyHistoryIndex:
			if err := a.index.Reload(); err == nil {
				a.log.Debug("history reloaded after external change")
			}
		case key == storage.MessagesKey(a.ActiveSessionID()):
			a.messagesChanged(a.ActiveSessionID(), a.Messages())
		}
	})
}
