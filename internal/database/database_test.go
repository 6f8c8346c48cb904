package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect("sqlite://file::memory:?cache=shared")
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	require.Equal(t, 1, one)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect("  ")
	require.Error(t, err)

	_, err = Connect("sqlite://")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = ConnectRedis(context.Background(), "")
	require.Error(t, err)
}
