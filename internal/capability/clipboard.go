// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"github.com/atotto/clipboard"

	"github.com/jeranaias/echoflow/internal/errs"
)

// Clipboard copies text for pasting elsewhere.
type Clipboard interface {
	Supported() bool
	Copy(text string) error
}

// SystemClipboard uses the OS clipboard (pbcopy, xclip, xsel, wl-copy or
// the Windows API).
type SystemClipboard struct{}

// Supported reports whether a clipboard utility was found.
func (SystemClipboard) Supported() bool {
	return !clipboard.Unsupported
}

// Copy writes text to the clipboard.
func (c SystemClipboard) Copy(text string) error {
	if !c.Supported() {
		return errs.Unavailable("clipboard.copy", "clipboard is not available", nil)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return errs.Unavailable("clipboard.copy", "could not copy the message", err)
	}
	return nil
}
