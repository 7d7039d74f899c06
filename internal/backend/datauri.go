// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidDataURI is returned by DecodeDataURI for malformed input.
var ErrInvalidDataURI = errors.New("invalid data URI")

// EncodeDataURI returns data as "data:<mime>;base64,<payload>".
func EncodeDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its media type and payload.
// Media type parameters such as ";codecs=opus" are kept.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, ErrInvalidDataURI
	}
	if mimeType == "" {
		mimeType = "text/plain;charset=US-ASCII"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}

// BaseMIMEType strips parameters: "audio/webm;codecs=opus" -> "audio/webm".
func BaseMIMEType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(base)
}
