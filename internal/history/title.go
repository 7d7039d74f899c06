// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/util"
)

// PlaceholderTitle names a chat whose first message had no text or file.
const PlaceholderTitle = "New Chat"

// DeriveTitle builds the initial title of a chat from its first message
// text and the name of an attached file, if any.
func DeriveTitle(text, filename string) string {
	if filename != "" {
		if text == "" {
			return util.TruncateRunes(filename, model.MaxTitleLength)
		}
		budget := model.MaxTitleLength - (util.RuneLen(filename) + 5)
		if budget <= 0 {
			return util.TruncateRunes("... "+filename, model.MaxTitleLength)
		}
		return util.TruncateRunes(text, budget) + "... " + filename
	}
	if text == "" {
		return PlaceholderTitle
	}
	return util.TruncateRunes(text, model.MaxTitleLength)
}
