package tui

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/storage"
)

func TestHistoryMarkAndDiff(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, hashes := range [][]uint64{{1, 2, 3}, {1, 2, 9}} {
		w, err := store.BeginRun("pond", 1)
		require.NoError(t, err)
		for i, h := range hashes {
			require.NoError(t, w.RecordChecksum(core.GameTime(30*(i+1)), h))
		}
		require.NoError(t, w.Finish(90, hashes[2]))
	}

	m, err := NewHistoryModel(store, "", 30)
	require.NoError(t, err)
	assert.Contains(t, m.View(), "pond")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(HistoryModel)
	assert.Contains(t, m.Status(), "marked #2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(HistoryModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(HistoryModel)
	assert.Contains(t, m.Status(), "#2 and #1 diverge at t90")
}

func TestHistoryEmpty(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer store.Close()

	m, err := NewHistoryModel(store, "", 30)
	require.NoError(t, err)
	assert.Contains(t, m.View(), "No runs recorded yet.")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Empty(t, next.(HistoryModel).Status())
}
