package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbopts "github.com/kart-io/docqa/pkg/options/database"
)

func TestNewSQLite(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	opts.LogLevel = 1

	client, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, dbopts.DriverSQLite, client.Name())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NotNil(t, client.DB())
}

func TestNewUnsupportedDriver(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Driver = "oracle"

	_, err := New(context.Background(), opts)
	assert.Error(t, err)
}
