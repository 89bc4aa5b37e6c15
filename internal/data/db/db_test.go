package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.False(t, Config{}.Enabled())
	assert.True(t, domain.IsConfig(Config{Driver: "mysql", DSN: "x"}.Validate()))
	assert.True(t, domain.IsConfig(Config{Driver: DriverPostgres}.Validate()))
	assert.NoError(t, Config{Driver: DriverSQLite, DSN: "file::memory:"}.Validate())
}

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := Open(Config{Driver: DriverSQLite, DSN: "file:" + t.Name() + "?mode=memory&cache=shared"}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	assert.True(t, db.Migrator().HasTable(&domain.IngestionRun{}))
}
