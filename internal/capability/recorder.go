// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/echoflow/internal/errs"
)

// Recorder captures audio between Start and Stop.
type Recorder interface {
	Supported() bool

	// Start begins capturing. It fails with CapabilityUnavailable when no
	// audio input can be acquired.
	Start(ctx context.Context) error

	// Stop ends capturing and returns the encoded audio and its MIME type.
	// An empty slice means nothing was recorded.
	Stop() ([]byte, string, error)

	// Cancel ends capturing and discards the audio.
	Cancel()
}

// ErrNotRecording is returned by Stop when Start was never called.
var ErrNotRecording = errors.New("not recording")

// =============================================================================
// EXEC RECORDER
// =============================================================================

// ExecRecorder records by running an external command that writes audio to
// a file. The placeholder "{file}" in the command is replaced with a temp
// file path. Stop interrupts the command and reads the file.
type ExecRecorder struct {
	command  []string
	mimeType string
	grace    time.Duration

	mu   sync.Mutex
	cmd  *exec.Cmd
	path string
	done chan error
}

// NewExecRecorder creates a recorder for command producing mimeType audio.
func NewExecRecorder(command []string, mimeType string) *ExecRecorder {
	return &ExecRecorder{
		command:  command,
		mimeType: mimeType,
		grace:    3 * time.Second,
	}
}

// Supported reports whether the command is installed.
func (r *ExecRecorder) Supported() bool {
	if len(r.command) == 0 {
		return false
	}
	_, err := exec.LookPath(r.command[0])
	return err == nil
}

// Start launches the recording command.
func (r *ExecRecorder) Start(ctx context.Context) error {
	if !r.Supported() {
		return errs.Unavailable("recorder.start", "audio recording is not available", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("already recording")
	}

	f, err := os.CreateTemp("", "echoflow-rec-*")
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}
	path := f.Name()
	f.Close()

	args := make([]string, len(r.command)-1)
	for i, a := range r.command[1:] {
		args[i] = strings.ReplaceAll(a, "{file}", path)
	}

	// The command outlives ctx's caller; only Stop or Cancel end it.
	cmd := exec.Command(r.command[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return errs.Unavailable("recorder.start", "could not access the microphone", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		// Exited immediately: device busy, permission denied and the like.
		os.Remove(path)
		return errs.Unavailable("recorder.start", "could not access the microphone", err)
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		cmd.Process.Kill()
		<-done
		os.Remove(path)
		return ctx.Err()
	}

	r.cmd, r.path, r.done = cmd, path, done
	return nil
}

// Stop interrupts the command and returns what it wrote.
func (r *ExecRecorder) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil, "", ErrNotRecording
	}
	r.halt()

	data, err := os.ReadFile(r.path)
	os.Remove(r.path)
	r.cmd, r.path, r.done = nil, "", nil
	if err != nil {
		return nil, "", fmt.Errorf("read recording: %w", err)
	}
	return data, r.mimeType, nil
}

// Cancel stops the command and discards the file.
func (r *ExecRecorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return
	}
	r.halt()
	os.Remove(r.path)
	r.cmd, r.path, r.done = nil, "", nil
}

// halt asks the command to finish its file, killing it after the grace
// period. Callers hold r.mu.
func (r *ExecRecorder) halt() {
	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		r.cmd.Process.Kill()
	}
	select {
	case <-r.done:
	case <-time.After(r.grace):
		r.cmd.Process.Kill()
		<-r.done
	}
}

// =============================================================================
// FILE RECORDER
// =============================================================================

// FileRecorder "records" by returning the contents of an existing file. It
// lets scripted sessions and tests feed prepared audio to the pipeline.
type FileRecorder struct {
	Path     string
	MIMEType string

	mu        sync.Mutex
	recording bool
}

// Supported reports whether a path is configured.
func (r *FileRecorder) Supported() bool {
	return r.Path != ""
}

// Start marks the recorder active.
func (r *FileRecorder) Start(ctx context.Context) error {
	if !r.Supported() {
		return errs.Unavailable("recorder.start", "audio recording is not available", nil)
	}
	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()
	return nil
}

// Stop returns the file contents.
func (r *FileRecorder) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, "", ErrNotRecording
	}
	r.recording = false

	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read recording: %w", err)
	}
	mime := r.MIMEType
	if mime == "" {
		mime = "audio/wav"
	}
	return data, mime, nil
}

// Cancel discards the recording.
func (r *FileRecorder) Cancel() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

// =============================================================================
// UNSUPPORTED
// =============================================================================

// NoRecorder is used when no audio input is configured.
type NoRecorder struct{}

func (NoRecorder) Supported() bool { return false }

func (NoRecorder) Start(context.Context) error {
	return errs.Unavailable("recorder.start", "audio recording is not available", nil)
}

func (NoRecorder) Stop() ([]byte, string, error) { return nil, "", ErrNotRecording }

func (NoRecorder) Cancel() {}
