package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDatabaseAndSchema(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "SQLite Database")
	store, dbPath, err := Open(dataDir, newTestCipher(t))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	require.Equal(t, filepath.Join(dataDir, DefaultDBFileName), dbPath)
	require.Equal(t, dbPath, store.Path())
	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file not created")

	var journalMode string
	require.NoError(t, store.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var count int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name = ?",
		"messages",
	).Scan(&count))
	require.Equal(t, 1, count)
}

func TestOpenIsIdempotent(t *testing.T) {
	dataDir := t.TempDir()
	sealer := newTestCipher(t)

	first := newTestStoreAt(t, dataDir, sealer)
	mustSave(t, first, "A", "B", "kept", "")
	require.NoError(t, first.Close())

	second := newTestStoreAt(t, dataDir, sealer)
	result := mustQuery(t, second, QueryOptions{})
	require.Len(t, result.Records, 1)
	require.Equal(t, "kept", result.Records[0].MessageReceived)
}

func TestOpenRequiresSealer(t *testing.T) {
	_, err := OpenPath(filepath.Join(t.TempDir(), "x.db"), nil)
	require.ErrorContains(t, err, "sealer is required")
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	store := newTestStore(t)
	mustSave(t, store, "A", "B", "before close", "")
	require.NoError(t, store.Close())

	_, err := store.Query(t.Context(), QueryOptions{})
	require.ErrorIs(t, err, ErrStorageUnavailable)

	var unavailableErr *UnavailableError
	require.ErrorAs(t, err, &unavailableErr)
	require.Equal(t, "acquire connection", unavailableErr.Op)

	_, err = store.Stats(t.Context())
	require.ErrorIs(t, err, ErrStorageUnavailable)
	_, err = store.DistinctSenders(t.Context())
	require.ErrorIs(t, err, ErrStorageUnavailable)

	require.False(t, store.Save(t.Context(), "A", "B", "after close", ""))
	require.False(t, store.ClearAll(t.Context()))
	require.False(t, store.HealthCheck(t.Context()))
}

func TestOperationsReleaseConnections(t *testing.T) {
	store := newTestStore(t)

	mustSave(t, store, "A", "B", "one", "")
	_ = mustQuery(t, store, QueryOptions{})
	_, err := store.Stats(t.Context())
	require.NoError(t, err)
	require.True(t, store.HealthCheck(t.Context()))
	require.True(t, store.ClearAll(t.Context()))

	stats := store.db.Stats()
	require.Zero(t, stats.InUse)
	require.Zero(t, stats.Idle)
}

func TestSaveGivesUpAfterBusyTimeout(t *testing.T) {
	store := newTestStore(t, WithBusyTimeout(100*time.Millisecond))

	holder, err := store.db.Conn(t.Context())
	require.NoError(t, err)
	defer holder.Close()
	_, err = holder.ExecContext(t.Context(), "BEGIN IMMEDIATE")
	require.NoError(t, err)

	require.False(t, store.Save(t.Context(), "A", "B", "blocked", ""))
	result := mustQuery(t, store, QueryOptions{})
	require.Empty(t, result.Records, "readers are not blocked by the held write lock")

	_, err = holder.ExecContext(t.Context(), "ROLLBACK")
	require.NoError(t, err)
	require.True(t, store.Save(t.Context(), "A", "B", "unblocked", ""))
}
