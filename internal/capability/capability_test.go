// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// VOICE SELECTION
// =============================================================================

func TestPickVoice(t *testing.T) {
	voices := []Voice{
		{URI: "en-default", Name: "English", Lang: "en-US", Default: true},
		{URI: "es-plain", Name: "Spanish", Lang: "es-ES"},
		{URI: "es-google", Name: "Google español", Lang: "es-US"},
		{URI: "fr", Name: "French", Lang: "fr-FR"},
	}

	tests := []struct {
		name  string
		saved string
		lang  string
		want  string
	}{
		{"saved voice wins", "fr", "es", "fr"},
		{"google voice for language", "", "es", "es-google"},
		{"stale saved falls through", "gone", "es", "es-google"},
		{"any voice for language", "", "fr", "fr"},
		{"default voice", "", "de", "en-default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := PickVoice(voices, tt.saved, tt.lang)
			require.True(t, ok)
			assert.Equal(t, tt.want, v.URI)
		})
	}

	v, ok := PickVoice([]Voice{{URI: "a"}, {URI: "b"}}, "", "")
	assert.True(t, ok)
	assert.Equal(t, "a", v.URI, "first voice when nothing else matches")

	_, ok = PickVoice(nil, "x", "en")
	assert.False(t, ok)
}

func TestParseEspeakVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-us           --/M      English_(America)  gmw/en-US
`
	voices := parseEspeakVoices(out)
	require.Len(t, voices, 2)
	assert.Equal(t, Voice{URI: "af", Lang: "af", Name: "Afrikaans", Default: true}, voices[0])
	assert.Equal(t, "en-us", voices[1].URI)
}

func TestParseSayVoices(t *testing.T) {
	out := "Alex                en_US    # Most people recognize me by my voice.\nBad News            en_US    # The light you see\n"
	voices := parseSayVoices(out)
	require.Len(t, voices, 2)
	assert.Equal(t, "Alex", voices[0].URI)
	assert.Equal(t, "en-US", voices[0].Lang)
	assert.Equal(t, "Bad News", voices[1].Name)
}

func TestNoSpeaker(t *testing.T) {
	err := NoSpeaker{}.Speak(context.Background(), "hi", nil)
	assert.True(t, errs.IsKind(err, errs.KindCapabilityUnavailable))
}

// =============================================================================
// RECORDERS
// =============================================================================

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.webm")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0600))

	r := &FileRecorder{Path: path, MIMEType: "audio/webm"}
	_, _, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, r.Start(context.Background()))
	data, mime, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data)
	assert.Equal(t, "audio/webm", mime)
}

func TestNoRecorder(t *testing.T) {
	err := NoRecorder{}.Start(context.Background())
	assert.True(t, errs.IsKind(err, errs.KindCapabilityUnavailable))
}

func TestExecRecorder_MissingCommand(t *testing.T) {
	r := NewExecRecorder([]string{"echoflow-no-such-recorder"}, "audio/wav")
	assert.False(t, r.Supported())
	err := r.Start(context.Background())
	assert.True(t, errs.IsKind(err, errs.KindCapabilityUnavailable))
}

func TestExecRecorder_RecordsFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewExecRecorder([]string{"sh", "-c", `printf abc > "$1"; exec sleep 5`, "sh", "{file}"}, "audio/wav")
	require.NoError(t, r.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)

	data, mime, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, "audio/wav", mime)
}

// =============================================================================
// HAPTIC / SHARE
// =============================================================================

func TestBell_Pulse(t *testing.T) {
	var buf bytes.Buffer
	b := NewBell(&buf)

	b.Pulse()
	assert.Equal(t, "\a", buf.String())

	buf.Reset()
	b.Pulse(50*time.Millisecond, 30*time.Millisecond, 50*time.Millisecond)
	assert.Equal(t, "\a\a", buf.String())
}

func TestCommandSharer(t *testing.T) {
	res, err := NewCommandSharer(nil).Share(context.Background(), "t", "x")
	assert.NoError(t, err)
	assert.Equal(t, Unsupported, res)

	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}

	res, err = NewCommandSharer([]string{"sh", "-c", "cat > /dev/null"}).Share(context.Background(), "t", "x")
	assert.NoError(t, err)
	assert.Equal(t, Shared, res)

	res, err = NewCommandSharer([]string{"sh", "-c", "exit 1"}).Share(context.Background(), "t", "x")
	assert.NoError(t, err)
	assert.Equal(t, Declined, res)

	res, err = NewCommandSharer([]string{"sh", "-c", "echo broken; exit 2"}).Share(context.Background(), "t", "x")
	assert.Error(t, err)
	assert.Equal(t, Declined, res)
}
