package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cruft/internal/engine/issues"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func reportFixture(runID string, files int) *issues.Report {
	c := issues.NewCollector()
	for i := 0; i < files; i++ {
		c.Add(issues.Issue{Type: issues.Files, FilePath: string(rune('a'+i)) + ".ts"})
	}
	c.SetCounters(10, 10+files)
	return c.Finalize(runID, nil)
}

func TestRecordAndReadBack(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.RecordRun(reportFixture("run-1", 2)))

	run, err := store.LastRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, "run-1", run.ID)
	require.Equal(t, 10, run.Processed)
	require.Equal(t, 12, run.Total)
	require.Equal(t, 2, run.IssueCounts["files"])
	require.Equal(t, 2, run.TotalIssues())
}

func TestEmptyStoreHasNoLastRun(t *testing.T) {
	store := openStore(t)
	run, err := store.LastRun()
	require.NoError(t, err)
	require.Nil(t, run)
}

func TestPreviousRunSkipsCurrent(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.RecordRun(reportFixture("run-1", 3)))
	require.NoError(t, store.RecordRun(reportFixture("run-2", 1)))

	previous, err := store.PreviousRun("run-2")
	require.NoError(t, err)
	require.NotNil(t, previous)
	require.Equal(t, "run-1", previous.ID)
}

func TestOpenRejectsDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}
