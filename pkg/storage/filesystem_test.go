package storage

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestLocalStorageCreateUniqueAppendsSuffixes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		name, err := store.CreateUnique("Asha Rao_JR KG_2024-01-15", ".pdf", writeString("receipt"))
		require.NoError(t, err)
		names = append(names, name)
	}

	assert.Equal(t, []string{
		"Asha Rao_JR KG_2024-01-15.pdf",
		"Asha Rao_JR KG_2024-01-15_1.pdf",
		"Asha Rao_JR KG_2024-01-15_2.pdf",
	}, names)
}

func TestLocalStorageCreateUniqueFillsGapFromDirectory(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.CreateUnique("token", ".pdf", writeString("a"))
	require.NoError(t, err)
	_, err = store.CreateUnique("token_2", ".pdf", writeString("b"))
	require.NoError(t, err)

	name, err := store.CreateUnique("token", ".pdf", writeString("c"))
	require.NoError(t, err)
	assert.Equal(t, "token_1.pdf", name)

	require.NoError(t, store.Delete("token.pdf"))
	name, err = store.CreateUnique("token", ".pdf", writeString("d"))
	require.NoError(t, err)
	assert.Equal(t, "token.pdf", name)
}

func TestLocalStorageCreateUniqueRemovesPartialFileOnError(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	boom := errors.New("render failed")
	_, err = store.CreateUnique("broken", ".pdf", func(w io.Writer) error {
		_, _ = io.WriteString(w, "half")
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := store.Exists("broken.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.CreateUnique("old", ".csv", writeString("x"))
	require.NoError(t, err)
	_, err = store.CreateUnique("fresh", ".csv", writeString("y"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old.csv"), past, past))

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, removed)

	exists, err := store.Exists("fresh.csv")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewLocalStorageRequiresRoot(t *testing.T) {
	_, err := NewLocalStorage("")
	require.Error(t, err)
}
