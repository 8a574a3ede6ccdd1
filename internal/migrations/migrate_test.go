package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestFindLatestMigrationVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_create_queues.up.sql":   {},
		"sql/000001_create_queues.down.sql": {},
		"sql/000012_add_index.up.sql":       {},
		"sql/README.md":                     {},
	}

	assert.Equal(t, int64(12), findLatestMigrationVersion(fsys, "sql"))
	assert.Equal(t, int64(0), findLatestMigrationVersion(fsys, "missing"))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	assert.Equal(t, int64(2), findLatestMigrationVersion(migrationFiles, "sql"))
}

func TestRunMigrationsRequiresURL(t *testing.T) {
	assert.Error(t, RunMigrations(""))
}
