package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "docflow", Password: "secret", Name: "docflow", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=docflow password=secret dbname=docflow sslmode=disable", dsn)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	ups, downs := 0, 0
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

func TestFilesOutliveTheirUploader(t *testing.T) {
	up, err := fs.ReadFile(migrationsFS, "migrations/000001_init_schema.up.sql")
	require.NoError(t, err)

	schema := string(up)
	start := strings.Index(schema, "CREATE TABLE IF NOT EXISTS files")
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(schema[start:], ");")
	require.Positive(t, end)

	assert.NotContains(t, schema[start:start+end], "REFERENCES users")
}
