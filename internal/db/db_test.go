package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t, "./x.db?_pragma=foreign_keys(1)", SQLiteDSN("./x.db"))
	require.Equal(t, "file::memory:?cache=shared&_pragma=foreign_keys(1)", SQLiteDSN("file::memory:?cache=shared"))
	require.Equal(t, "a.db?_pragma=foreign_keys(0)", SQLiteDSN("a.db?_pragma=foreign_keys(0)"))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "x")
	require.Error(t, err)
}

func TestConnect_SQLiteMemory(t *testing.T) {
	gdb, err := Connect("sqlite", "file:conn_test?mode=memory&cache=shared")
	require.NoError(t, err)

	var fk int
	require.NoError(t, gdb.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	require.Equal(t, 1, fk)
}

func TestConnect_DriverNameIsCaseInsensitive(t *testing.T) {
	gdb, err := Connect(" SQLite ", "file:conn_case_test?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.Equal(t, 0, sqlDB.Stats().MaxOpenConnections)

	tunePool(sqlDB, "mysql")
	require.Equal(t, 20, sqlDB.Stats().MaxOpenConnections)
}
