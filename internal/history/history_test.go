// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/echoflow/internal/conversation"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/storage"
)

// fakeClock advances one second per reading so every mutation is ordered.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestIndex(t *testing.T) (*Index, *conversation.Store, storage.Store) {
	t.Helper()
	kv := storage.NewMemoryStore()
	logs := conversation.New(kv)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return Open(kv, WithSessionLog(logs), WithClock(clock.Now)), logs, kv
}

func addUserMessage(t *testing.T, idx *Index, logs *conversation.Store, id, text string) {
	t.Helper()
	require.NoError(t, logs.Append(id, model.NewMessage(model.SenderUser, text)))
	require.NoError(t, idx.UpsertOnFirstUserMessage(id, DeriveTitle(text, ""), text))
}

// =============================================================================
// TITLE DERIVATION
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	tests := []struct {
		name     string
		text     string
		filename string
		want     string
	}{
		{"text only", "Hello world", "", "Hello world"},
		{"file only", "", "photo.png", "photo.png"},
		{"long text", long, "", strings.Repeat("a", 50)},
		{"empty", "", "", "New Chat"},
		{"text and file", "Describe this picture please", "photo.png", "Describe this picture please... photo.png"},
		{"long text and file", long, "photo.png", strings.Repeat("a", 36) + "... photo.png"},
		{"huge filename", "hi", strings.Repeat("f", 60), "... " + strings.Repeat("f", 46)},
		{"multibyte", strings.Repeat("é", 55), "", strings.Repeat("é", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTitle(tt.text, tt.filename)
			if got != tt.want {
				t.Errorf("DeriveTitle(%q, %q) = %q, want %q", tt.text, tt.filename, got, tt.want)
			}
			if n := len([]rune(got)); n > model.MaxTitleLength {
				t.Errorf("title has %d runes, exceeds %d", n, model.MaxTitleLength)
			}
		})
	}
}

// =============================================================================
// UPSERT / TOUCH
// =============================================================================

func TestIndex_UpsertCreatesUnpinnedEntry(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "first question")

	e, ok := idx.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "first question", e.Title)
	assert.Equal(t, "first question", e.FirstMessageContent)
	assert.False(t, e.IsPinned)
}

func TestIndex_TitleFixedAfterFirstMessage(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "first question")
	before, _ := idx.Get("s1")

	addUserMessage(t, idx, logs, "s1", "second question")

	after, _ := idx.Get("s1")
	assert.Equal(t, "first question", after.Title)
	assert.Equal(t, "first question", after.FirstMessageContent)
	assert.True(t, after.Timestamp.After(before.Timestamp), "timestamp should advance")
}

func TestIndex_FirstMessageOverwritesPreexistingEntry(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	require.NoError(t, idx.UpsertOnFirstUserMessage("s1", "stale", "stale"))

	addUserMessage(t, idx, logs, "s1", "real first message")

	e, _ := idx.Get("s1")
	assert.Equal(t, "real first message", e.Title)
}

func TestIndex_TouchTwiceOnlyChangesTimestamp(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "hello")

	require.NoError(t, idx.Touch("s1"))
	first, _ := idx.Get("s1")
	require.NoError(t, idx.Touch("s1"))
	second, _ := idx.Get("s1")

	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.FirstMessageContent, second.FirstMessageContent)
	assert.Equal(t, first.IsPinned, second.IsPinned)
	assert.True(t, second.Timestamp.After(first.Timestamp))

	assert.ErrorIs(t, idx.Touch("missing"), ErrNotFound)
}

// =============================================================================
// RENAME / PIN / DELETE
// =============================================================================

func TestIndex_Rename(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "hello")

	require.NoError(t, idx.Rename("s1", "  "+strings.Repeat("r", 70)+"  "))
	e, _ := idx.Get("s1")
	assert.Equal(t, strings.Repeat("r", 50), e.Title)

	err := idx.Rename("s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
	e2, _ := idx.Get("s1")
	assert.Equal(t, e, e2, "failed rename must not change the entry")
}

func TestIndex_TogglePinOrdersFirst(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	addUserMessage(t, idx, logs, "old", "old chat")
	addUserMessage(t, idx, logs, "new", "new chat")

	pinned, err := idx.TogglePin("old")
	require.NoError(t, err)
	assert.True(t, pinned)
	assert.Equal(t, "old", idx.Entries()[0].SessionID)

	pinned, err = idx.TogglePin("old")
	require.NoError(t, err)
	assert.False(t, pinned)
}

func TestIndex_DeleteRemovesEntryAndLog(t *testing.T) {
	idx, logs, kv := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "hello")
	addUserMessage(t, idx, logs, "s2", "other")

	require.NoError(t, idx.Delete("s1"))

	assert.False(t, idx.Contains("s1"))
	assert.True(t, idx.Contains("s2"))
	_, ok, err := kv.Get(storage.MessagesKey("s1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// ORDERING PROPERTY
// =============================================================================

func TestIndex_AlwaysSorted(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	ids := []string{"a", "b", "c", "d", "e"}
	r := rand.New(rand.NewPCG(1, 2))

	for step := 0; step < 200; step++ {
		id := ids[r.IntN(len(ids))]
		switch r.IntN(3) {
		case 0:
			addUserMessage(t, idx, logs, id, "msg "+id)
		case 1:
			if idx.Contains(id) {
				_, err := idx.TogglePin(id)
				require.NoError(t, err)
			}
		case 2:
			if idx.Contains(id) {
				require.NoError(t, idx.Rename(id, "renamed "+id))
			}
		}
		if !model.IsHistorySorted(idx.Entries()) {
			t.Fatalf("index unsorted after step %d: %+v", step, idx.Entries())
		}
	}
}

// =============================================================================
// SEARCH / PERSISTENCE
// =============================================================================

func TestIndex_SearchCaseInsensitive(t *testing.T) {
	idx, logs, _ := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "Golang generics")
	addUserMessage(t, idx, logs, "s2", "Cooking pasta")
	addUserMessage(t, idx, logs, "s3", "GOLANG channels")

	got := idx.Search("golang")
	require.Len(t, got, 2)
	assert.Equal(t, "s3", got[0].SessionID, "results keep index order")
	assert.Equal(t, "s1", got[1].SessionID)

	assert.Len(t, idx.Search(""), 3)
	assert.Empty(t, idx.Search("rust"))
}

func TestIndex_PersistsAndReloads(t *testing.T) {
	idx, logs, kv := newTestIndex(t)
	addUserMessage(t, idx, logs, "s1", "hello")
	_, err := idx.TogglePin("s1")
	require.NoError(t, err)

	reopened := Open(kv)
	e, ok := reopened.Get("s1")
	require.True(t, ok)
	assert.True(t, e.IsPinned)

	// A second writer changes the index; Reload picks it up.
	require.NoError(t, idx.Rename("s1", "renamed elsewhere"))
	require.NoError(t, reopened.Reload())
	e, _ = reopened.Get("s1")
	assert.Equal(t, "renamed elsewhere", e.Title)
}

func TestIndex_CorruptIndexStartsEmpty(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(storage.KeyHistoryIndex, "not json at all"))

	idx := Open(kv)
	assert.Equal(t, 0, idx.Len())
}

// failingStore fails reads of one key while fails is positive.
type failingStore struct {
	storage.Store
	key   string
	fails int
}

func (f *failingStore) Get(key string) (string, bool, error) {
	if key == f.key && f.fails > 0 {
		f.fails--
		return "", false, errors.New("database is locked")
	}
	return f.Store.Get(key)
}

func TestIndex_FailedReloadKeepsEntries(t *testing.T) {
	kv := &failingStore{Store: storage.NewMemoryStore(), key: storage.KeyHistoryIndex}
	logs := conversation.New(kv)
	idx := Open(kv, WithSessionLog(logs))
	addUserMessage(t, idx, logs, "s1", "first")
	addUserMessage(t, idx, logs, "s2", "second")

	kv.fails = 1
	assert.Error(t, idx.Reload())
	assert.Len(t, idx.Entries(), 2)

	addUserMessage(t, idx, logs, "s3", "third")
	assert.Len(t, Open(kv).Entries(), 3)
}

func TestIndex_UnreadableAtOpenIsNotOverwritten(t *testing.T) {
	kv := &failingStore{Store: storage.NewMemoryStore(), key: storage.KeyHistoryIndex}
	logs := conversation.New(kv)
	addUserMessage(t, Open(kv, WithSessionLog(logs)), logs, "s1", "first")

	kv.fails = 2
	idx := Open(kv, WithSessionLog(logs))
	assert.Empty(t, idx.Entries())

	// Still unreadable: the write is refused.
	require.NoError(t, logs.Append("s2", model.NewMessage(model.SenderUser, "second")))
	assert.Error(t, idx.UpsertOnFirstUserMessage("s2", "second", "second"))
	assert.Len(t, Open(kv).Entries(), 1)

	// Readable again: the stored entries are picked up before writing.
	require.NoError(t, idx.UpsertOnFirstUserMessage("s2", "second", "second"))
	assert.Len(t, idx.Entries(), 2)
	assert.Len(t, Open(kv).Entries(), 2)
}

func TestIndex_LegacyEntriesLoad(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(storage.KeyHistoryIndex,
		`[{"sessionId":"abcdef","firstMessage":"legacy","timestamp":"2024-05-01T00:00:00Z"}]`))

	idx := Open(kv)
	e, ok := idx.Get("abcdef")
	require.True(t, ok)
	assert.Equal(t, "legacy", e.Title)
}

func TestFormatList(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	out := FormatList([]model.HistoryEntry{
		{SessionID: "s1", Title: "Pinned chat", IsPinned: true, Timestamp: now.Add(-3 * time.Hour)},
		{SessionID: "s2", Title: "Line one\nline two", Timestamp: now},
	}, now)

	assert.Contains(t, out, "  1  * Pinned chat")
	assert.Contains(t, out, "3 hours ago")
	assert.Contains(t, out, "Line one line two")
	assert.Contains(t, out, "just now")
	assert.Equal(t, "No chats found.", FormatList(nil, now))
}
