package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/pkg/config"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(&config.Config{Store: config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: ":memory:"}})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.DriverName())
	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func TestOpenRejectsMemoryDriver(t *testing.T) {
	_, err := Open(&config.Config{Store: config.StoreConfig{Driver: config.StoreDriverMemory}})
	assert.Error(t, err)
}
