// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/echoflow/internal/model"
)

const (
	titleWidth   = 44
	updatedWidth = 16
)

// FormatList renders entries as a numbered table for the terminal. Numbers
// start at 1 and match the order of entries.
func FormatList(entries []model.HistoryEntry, now time.Time) string {
	if len(entries) == 0 {
		return "No chats found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%3s  %s %s %s\n", "#", " ",
		runewidth.FillRight("Title", titleWidth),
		runewidth.FillRight("Updated", updatedWidth)))
	sb.WriteString(strings.Repeat("-", 3+2+2+titleWidth+1+updatedWidth) + "\n")

	for n, e := range entries {
		pin := " "
		if e.IsPinned {
			pin = "*"
		}
		title := strings.Join(strings.Fields(e.Title), " ")
		title = runewidth.Truncate(title, titleWidth, "...")

		sb.WriteString(fmt.Sprintf("%3d  %s %s %s\n", n+1, pin,
			runewidth.FillRight(title, titleWidth),
			RelativeTime(e.Timestamp, now)))
	}
	return sb.String()
}

// RelativeTime describes t relative to now ("3 minutes ago").
func RelativeTime(t, now time.Time) string {
	if now.Sub(t) < time.Second && t.Sub(now) < time.Second {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
