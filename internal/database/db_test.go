package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *DB, table string) bool {
	t.Helper()
	var n int
	err := db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrate_Customers(t *testing.T) {
	db := newTestDB(t, NameCustomers, ProfileStandard)

	require.NoError(t, db.Migrate())
	assert.True(t, tableExists(t, db, "customers"))
	assert.True(t, tableExists(t, db, "transactions"))
	assert.True(t, tableExists(t, db, "customer_controls"))

	// Idempotent
	require.NoError(t, db.Migrate())
}

func TestMigrate_Cache(t *testing.T) {
	db := newTestDB(t, NameCache, ProfileCache)

	require.NoError(t, db.Migrate())
	assert.True(t, tableExists(t, db, "kpi_snapshots"))
	assert.Equal(t, ProfileCache, db.Profile())
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", "")

	require.NoError(t, db.Migrate())
	assert.False(t, tableExists(t, db, "customers"))
	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestBuildConnectionString(t *testing.T) {
	cs := buildConnectionString("/tmp/x.db", ProfileCache)
	assert.Contains(t, cs, "/tmp/x.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, cs, "synchronous(OFF)")
	assert.Contains(t, cs, "foreign_keys(1)")

	cs = buildConnectionString("file:mem?mode=memory", ProfileStandard)
	assert.Contains(t, cs, "mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, cs, "synchronous(NORMAL)")
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "tx", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
		return n
	}

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t VALUES (2)")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t VALUES (3)")
		panic("unexpected")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestChecksAndStats(t *testing.T) {
	db := newTestDB(t, NameCustomers, ProfileStandard)
	require.NoError(t, db.Migrate())
	ctx := context.Background()

	assert.NoError(t, db.QuickCheck(ctx))
	assert.NoError(t, db.HealthCheck(ctx))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("passive"))
	assert.Error(t, db.WALCheckpoint("bogus"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestSnapshotTo(t *testing.T) {
	db := newTestDB(t, NameCustomers, ProfileStandard)
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.SnapshotTo(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	copyDB, err := New(Config{Path: dest, Name: NameCustomers})
	require.NoError(t, err)
	defer copyDB.Close()
	assert.True(t, tableExists(t, copyDB, "customers"))
}
