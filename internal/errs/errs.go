// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errs defines the error taxonomy shared by the echoflow core.
//
// Every failure the core surfaces falls into one of four kinds:
//
//   - KindValidation: rejected locally, no state change (empty rename, empty submit)
//   - KindCapabilityUnavailable: microphone, speech, clipboard or share missing
//   - KindBackendFailure: network error, non-success status, empty payload
//   - KindStorageCorruption: malformed persisted blob, treated as absent
//
// Use errors.Is(err, errs.ErrValidation) or errs.IsKind(err, errs.KindValidation).
package errs

import (
	"errors"
	"fmt"
)

// =============================================================================
// KINDS
// =============================================================================

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindCapabilityUnavailable
	KindBackendFailure
	KindStorageCorruption
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapabilityUnavailable:
		return "capability_unavailable"
	case KindBackendFailure:
		return "backend_failure"
	case KindStorageCorruption:
		return "storage_corruption"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a classified error. Op names the operation that failed, Msg is a
// human-readable summary and Err the optional underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind whose Op and Msg are empty,
// which is how the Err* sentinels below are built.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Msg == "" || t.Msg == e.Msg)
}

// Sentinels for errors.Is checks by kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrCapabilityUnavailable = &Error{Kind: KindCapabilityUnavailable}
	ErrBackendFailure        = &Error{Kind: KindBackendFailure}
	ErrStorageCorruption     = &Error{Kind: KindStorageCorruption}
)

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// Validation returns a KindValidation error.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// Unavailable returns a KindCapabilityUnavailable error.
func Unavailable(op, msg string, err error) error {
	return &Error{Kind: KindCapabilityUnavailable, Op: op, Msg: msg, Err: err}
}

// Backend returns a KindBackendFailure error.
func Backend(op, msg string, err error) error {
	return &Error{Kind: KindBackendFailure, Op: op, Msg: msg, Err: err}
}

// Corrupt returns a KindStorageCorruption error.
func Corrupt(op, key string, err error) error {
	return &Error{Kind: KindStorageCorruption, Op: op, Msg: fmt.Sprintf("malformed value for %q", key), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Reason returns the most specific human-readable message for err: the
// classified message when present, otherwise err.Error().
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}
