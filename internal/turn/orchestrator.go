// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/conversation"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
)

// =============================================================================
// STATE
// =============================================================================

// State is the phase of a session's current turn.
type State int

const (
	Idle State = iota
	Submitting
	AwaitingBackend
	ResolvedSuccess
	ResolvedError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case AwaitingBackend:
		return "awaiting_backend"
	case ResolvedSuccess:
		return "resolved_success"
	case ResolvedError:
		return "resolved_error"
	default:
		return "unknown"
	}
}

// PlaceholderText is shown while waiting for a reply.
const PlaceholderText = "Thinking..."

var (
	// ErrTurnInFlight rejects a submit while the session awaits a reply.
	ErrTurnInFlight = &errs.Error{Kind: errs.KindValidation, Op: "turn", Msg: "a reply is already pending for this chat"}

	// ErrEmptySubmit rejects a submit with no text and no attachment.
	ErrEmptySubmit = &errs.Error{Kind: errs.KindValidation, Op: "turn", Msg: "message is empty"}

	// ErrNoSession rejects a submit without a session id.
	ErrNoSession = &errs.Error{Kind: errs.KindValidation, Op: "turn", Msg: "no active session"}
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// MessageLog is the conversation store surface a turn writes to.
type MessageLog interface {
	Append(sessionID string, msg model.Message) error
	Replace(sessionID, messageID string, u conversation.Update) error
	RemoveByID(sessionID, messageID string) error
}

// Index is the history surface a turn updates.
type Index interface {
	UpsertOnFirstUserMessage(sessionID, title, preview string) error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs turns.
type Orchestrator struct {
	logs     MessageLog
	index    Index
	chat     backend.Chatter
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time

	// active reports the session currently on screen; speak plays a reply.
	active func() string
	speak  func(text string)
	hook   func(sessionID string, s State)

	mu        sync.Mutex
	states    map[string]State
	abandoned map[string]bool

	// writeMu orders turn writes against Abandon.
	writeMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets where notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSpeech plays successful replies through speak, but only for the
// session active() reports at resolution time.
func WithSpeech(active func() string, speak func(text string)) Option {
	return func(o *Orchestrator) {
		o.active = active
		o.speak = speak
	}
}

// WithStateHook observes every state transition.
func WithStateHook(fn func(sessionID string, s State)) Option {
	return func(o *Orchestrator) { o.hook = fn }
}

// New creates an Orchestrator.
func New(logs MessageLog, index Index, chat backend.Chatter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logs:     logs,
		index:    index,
		chat:     chat,
		notifier: notify.Discard,
		log:      zap.NewNop(),
		now:      time.Now,
		states:    make(map[string]State),
		abandoned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state of sessionID's turn.
func (o *Orchestrator) State(sessionID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[sessionID]
}

// InFlight reports whether sessionID has a turn in progress.
func (o *Orchestrator) InFlight(sessionID string) bool {
	return o.State(sessionID) != Idle
}

func (o *Orchestrator) setState(sessionID string, s State) {
	o.mu.Lock()
	if s == Idle {
		delete(o.states, sessionID)
		delete(o.abandoned, sessionID)
	} else {
		o.states[sessionID] = s
	}
	hook := o.hook
	o.mu.Unlock()

	o.log.Debug("turn state", zap.String("session", sessionID), zap.Stringer("state", s))
	if hook != nil {
		hook(sessionID, s)
	}
}

// Abandon stops an in-flight turn of sessionID from writing anything more
// and then runs drop, typically the deletion of the chat. No turn write of
// the session can land between the two, so a deleted log stays deleted.
func (o *Orchestrator) Abandon(sessionID string, drop func() error) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	o.mu.Lock()
	if o.states[sessionID] != Idle {
		o.abandoned[sessionID] = true
		o.log.Debug("turn abandoned", zap.String("session", sessionID))
	}
	o.mu.Unlock()

	if drop == nil {
		return nil
	}
	return drop()
}

func (o *Orchestrator) isAbandoned(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.abandoned[sessionID]
}

// =============================================================================
// TEXT PATH
// =============================================================================

// Attachment is an image sent with a message.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Input is one user submission.
type Input struct {
	SessionID  string
	Text       string
	Attachment *Attachment
}

// DisplayText is the user message shown for text with an optional
// attachment name.
func DisplayText(text, attachmentName string) string {
	if attachmentName == "" {
		return text
	}
	label := "[Image attached: " + attachmentName + "]"
	if text == "" {
		return label
	}
	return text + " " + label
}

// Submit runs a full text turn. Rejections (validation, in-flight) return
// before anything is recorded. A backend failure is recorded in the log and
// also returned.
func (o *Orchestrator) Submit(ctx context.Context, in Input) error {
	text := strings.TrimSpace(in.Text)
	if in.SessionID == "" {
		return ErrNoSession
	}
	if text == "" && in.Attachment == nil {
		return ErrEmptySubmit
	}

	t, err := o.Begin(in.SessionID)
	if err != nil {
		return err
	}
	defer t.End()

	req := backend.ChatRequest{Message: text}
	var fileName string
	if a := in.Attachment; a != nil {
		fileName = a.Name
		req.ImageDataURI = backend.EncodeDataURI(a.MIMEType, a.Data)
	}
	displayed := DisplayText(text, fileName)

	if err := t.AppendUser(displayed, history.DeriveTitle(text, fileName), displayed); err != nil {
		return err
	}
	if err := t.Placeholder(PlaceholderText); err != nil {
		return t.Fail(err)
	}

	_, err = t.Await(ctx, req)
	return err
}

// =============================================================================
// TURN
// =============================================================================

// Turn is one in-flight cycle for a session. Always call End.
type Turn struct {
	o             *Orchestrator
	sessionID     string
	placeholderID string
	ended         bool
}

// Begin claims sessionID for a new turn.
func (o *Orchestrator) Begin(sessionID string) (*Turn, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	o.mu.Lock()
	if o.states[sessionID] != Idle {
		o.mu.Unlock()
		o.log.Debug("turn rejected, reply pending", zap.String("session", sessionID))
		return nil, ErrTurnInFlight
	}
	o.states[sessionID] = Submitting
	o.mu.Unlock()

	if o.hook != nil {
		o.hook(sessionID, Submitting)
	}
	return &Turn{o: o, sessionID: sessionID}, nil
}

// SessionID returns the session the turn belongs to.
func (t *Turn) SessionID() string {
	return t.sessionID
}

// Abandoned reports whether the turn's session was deleted meanwhile.
func (t *Turn) Abandoned() bool {
	return t.o.isAbandoned(t.sessionID)
}

// write runs fn unless the session was abandoned, and reports whether it
// ran.
func (t *Turn) write(fn func() error) (bool, error) {
	t.o.writeMu.Lock()
	defer t.o.writeMu.Unlock()
	if t.o.isAbandoned(t.sessionID) {
		return false, nil
	}
	return true, fn()
}

// AppendUser records the user's message and updates the history index.
// A failed index update is logged; the message stays recorded.
func (t *Turn) AppendUser(text, title, preview string) error {
	msg := t.message(model.SenderUser, text)
	_, err := t.write(func() error {
		if err := t.o.logs.Append(t.sessionID, msg); err != nil {
			return err
		}
		if err := t.o.index.UpsertOnFirstUserMessage(t.sessionID, title, preview); err != nil {
			t.o.log.Warn("history update failed", zap.String("session", t.sessionID), zap.Error(err))
		}
		return nil
	})
	return err
}

// Placeholder appends the loading bot message.
func (t *Turn) Placeholder(text string) error {
	msg := t.message(model.SenderBot, text)
	msg.IsLoading = true
	ran, err := t.write(func() error { return t.o.logs.Append(t.sessionID, msg) })
	if err != nil {
		return err
	}
	if ran {
		t.placeholderID = msg.ID
	}
	return nil
}

// UpdatePlaceholder changes the placeholder's text.
func (t *Turn) UpdatePlaceholder(text string) error {
	if t.placeholderID == "" {
		return t.Placeholder(text)
	}
	_, err := t.write(func() error {
		return t.o.logs.Replace(t.sessionID, t.placeholderID, conversation.Update{Text: &text})
	})
	return err
}

// Awaiting marks the turn as waiting on a backend call.
func (t *Turn) Awaiting() {
	t.o.setState(t.sessionID, AwaitingBackend)
}

// Await sends req and resolves the turn with the reply or the failure.
func (t *Turn) Await(ctx context.Context, req backend.ChatRequest) (string, error) {
	t.Awaiting()

	reply, err := t.o.chat.SendChatMessage(ctx, req)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = backend.ErrEmptyResponse
	}
	if err != nil {
		return "", t.Fail(err)
	}

	ran, err := t.write(func() error {
		if err := t.removePlaceholder(); err != nil {
			t.o.log.Warn("placeholder removal failed", zap.String("session", t.sessionID), zap.Error(err))
		}
		return t.o.logs.Append(t.sessionID, t.message(model.SenderBot, reply))
	})
	if err != nil {
		return "", t.Fail(err)
	}
	if !ran {
		t.o.log.Info("reply dropped, chat was deleted", zap.String("session", t.sessionID))
	}
	t.o.setState(t.sessionID, ResolvedSuccess)

	if t.o.speak != nil && t.o.active != nil && t.o.active() == t.sessionID {
		t.o.speak(reply)
	}
	return reply, nil
}

// Fail resolves the turn with err: the placeholder is removed, a system
// message records the reason and a destructive notice is raised. It returns
// err classified as a backend failure when it was not already classified.
func (t *Turn) Fail(err error) error {
	reason := errs.Reason(err)
	t.o.log.Warn("turn failed", zap.String("session", t.sessionID), zap.Error(err))

	ran, _ := t.write(func() error {
		if rmErr := t.removePlaceholder(); rmErr != nil {
			t.o.log.Warn("placeholder removal failed", zap.String("session", t.sessionID), zap.Error(rmErr))
		}
		if appendErr := t.o.logs.Append(t.sessionID, t.message(model.SenderSystem, "Error: "+reason)); appendErr != nil {
			t.o.log.Error("could not record turn failure", zap.String("session", t.sessionID), zap.Error(appendErr))
		}
		return nil
	})
	if ran {
		t.o.notifier.Notify(notify.Error("Error", reason))
	}
	t.o.setState(t.sessionID, ResolvedError)

	if errs.KindOf(err) == errs.KindUnknown {
		return errs.Backend("turn", reason, err)
	}
	return err
}

// End returns the session to Idle. It is safe to call more than once.
func (t *Turn) End() {
	if t.ended {
		return
	}
	t.ended = true
	t.o.setState(t.sessionID, Idle)
}

func (t *Turn) removePlaceholder() error {
	if t.placeholderID == "" {
		return nil
	}
	id := t.placeholderID
	t.placeholderID = ""
	return t.o.logs.RemoveByID(t.sessionID, id)
}

func (t *Turn) message(sender model.Sender, text string) model.Message {
	return model.Message{
		ID:        model.NewMessageID(),
		Text:      text,
		Sender:    sender,
		Timestamp: t.o.now(),
	}
}
