// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/echoflow/internal/config"
	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid arguments or input
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitBackendError indicates the backend failed or returned nothing
	ExitBackendError = 5
	// ExitUnavailableError indicates a device capability is missing
	ExitUnavailableError = 6
	// ExitStorageError indicates unreadable persisted data
	ExitStorageError = 7
	// ExitInterrupted indicates the user cancelled with Ctrl+C
	ExitInterrupted = 130
)

// usageError marks bad command-line input.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// GetExitCode maps an error to the process exit status.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	var verrs config.ValidateErrors
	if errors.As(err, &verrs) {
		return ExitConfigError
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	switch errs.KindOf(err) {
	case errs.KindValidation:
		return ExitUsageError
	case errs.KindBackendFailure:
		return ExitBackendError
	case errs.KindCapabilityUnavailable:
		return ExitUnavailableError
	case errs.KindStorageCorruption:
		return ExitStorageError
	}
	return ExitGeneralError
}

// DisplayError prints err in the standard "[Error] message" form.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[Error]"), errs.Reason(err))
}
