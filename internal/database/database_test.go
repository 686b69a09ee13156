package database

import (
	"context"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOpenSQL_SQLiteMemory(t *testing.T) {
	db, err := OpenSQL(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	require.Equal(t, 1, one)
}

func TestConnectRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	host, port := m.Host(), m.Port()

	client, err := ConnectRedis(context.Background(), host, port, "", 0)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	m.Close()
	_, err = ConnectRedis(context.Background(), host, port, "", 0)
	require.Error(t, err)
}
