package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	st := NewOrchestratorState(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st.Tasks["1"] = &TaskRecord{ID: 1, Title: "First", Status: StatusPending}

	require.NoError(t, store.Save(st))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, st.Tasks, loaded.Tasks)
	require.Equal(t, st.StartedAt.Unix(), loaded.StartedAt.Unix())
	require.GreaterOrEqual(t, loaded.UpdatedAt, st.StartedAt)
}

func TestLoadMissingFileYieldsNone(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestLoadMalformedFileYieldsNone(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	path := store.Path()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestClearThenLoadYieldsNone(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	st := NewOrchestratorState(time.Now().UTC())
	require.NoError(t, store.Save(st))

	require.NoError(t, Clear(store.Path()))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestClearMissingFileIsNoop(t *testing.T) {
	require.NoError(t, Clear(filepath.Join(t.TempDir(), "missing.json")))
}

func TestMutateInitializesOnFirstCall(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	err := store.Mutate(func(st *OrchestratorState) error {
		st.Tasks["1"] = &TaskRecord{ID: 1, Status: StatusCompleted}

		return nil
	})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, loaded.Tasks["1"].Status)
}
