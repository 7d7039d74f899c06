// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// Document is the JSON export layout. Entry and Messages use the same field
// names as the persisted history index and session logs.
type Document struct {
	Generator string             `json:"generator"`
	Exported  time.Time          `json:"exported"`
	Entry     model.HistoryEntry `json:"entry"`
	Messages  []model.Message    `json:"messages"`
}

// JSONExporter exports conversations to JSON. Options other than the clock
// are ignored; the document always carries the full log.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(conv *Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errs.Validation("export.json", "conversation is nil")
	}
	doc := Document{
		Generator: "echoflow",
		Exported:  e.options.now(),
		Entry:     conv.Entry,
		Messages:  conv.visible(),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
