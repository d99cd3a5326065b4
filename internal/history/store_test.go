package history

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), log.New(io.Discard))
	require.NoError(t, err, "Failed to open history store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_History(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordStart(Entry{Ref: "1:1", Label: "Al-Fatihah 1:1", Started: base}))
	require.NoError(t, store.RecordStart(Entry{Ref: "2:255", Label: "Al-Baqarah 2:255", Started: base.Add(time.Minute)}))
	require.NoError(t, store.RecordStart(Entry{Ref: "94:6", Started: base.Add(2 * time.Minute)}))

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "94:6", entries[0].Ref, "The most recent session should be first")
	require.Equal(t, "2:255", entries[1].Ref)
	require.Equal(t, "1:1", entries[2].Ref)
	require.False(t, entries[0].Done())

	limited, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2, "History should be truncated to the limit")

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestStore_RecordComplete(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordStart(Entry{Ref: "2:255", Started: base}))
	require.NoError(t, store.RecordStart(Entry{Ref: "2:255", Started: base.Add(time.Hour)}))

	require.NoError(t, store.RecordComplete("2:255"))

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[0].Done(), "The newest session should be completed")
	require.False(t, entries[1].Done())

	require.NoError(t, store.RecordComplete("2:255"))
	err = store.RecordComplete("2:255")
	require.True(t, errors.Is(err, ErrNoEntry), "got %v", err)

	err = store.RecordComplete("3:1")
	require.ErrorIs(t, err, ErrNoEntry)
}

func TestStore_RecordStartRequiresRef(t *testing.T) {
	store := openTestStore(t)
	require.Error(t, store.RecordStart(Entry{}))
}

func TestStore_Clear(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.RecordStart(Entry{Ref: "1:1"}))
	require.NoError(t, store.SavePreferences(Preferences{Volume: 0.3}))

	require.NoError(t, store.Clear())

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Empty(t, entries)

	prefs, err := store.LoadPreferences(DefaultPreferences())
	require.NoError(t, err)
	require.Equal(t, 0.3, prefs.Volume, "Clear should keep preferences")
}

func TestStore_Preferences(t *testing.T) {
	store := openTestStore(t)

	prefs, err := store.LoadPreferences(DefaultPreferences())
	require.NoError(t, err)
	require.Equal(t, DefaultPreferences(), prefs)

	prefs, err = store.LoadPreferences(Preferences{Volume: 0.6})
	require.NoError(t, err)
	require.Equal(t, 0.6, prefs.Volume, "Fallback should be used when nothing was saved")

	require.NoError(t, store.SavePreferences(Preferences{Volume: 0.4, Muted: true}))
	prefs, err = store.LoadPreferences(DefaultPreferences())
	require.NoError(t, err)
	require.Equal(t, Preferences{Volume: 0.4, Muted: true}, prefs)

	require.NoError(t, store.SavePreferences(Preferences{Volume: 7}))
	prefs, err = store.LoadPreferences(DefaultPreferences())
	require.NoError(t, err)
	require.Equal(t, 1.0, prefs.Volume, "Volume should be clamped")
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordStart(Entry{Ref: "112:1"}))
	require.NoError(t, store.Close())

	store, err = Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.List(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "112:1", entries[0].Ref)
}
