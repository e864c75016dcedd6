package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../migrations"

func TestMigrationFilesExist(t *testing.T) {
	for _, filename := range []string{
		"000001_initial_schema.up.sql",
		"000001_initial_schema.down.sql",
	} {
		_, err := os.Stat(filepath.Join(migrationsDir, filename))
		assert.NoError(t, err, filename)
	}
}

func TestInitialSchemaCreatesLifecycleTables(t *testing.T) {
	content, err := os.ReadFile(filepath.Join(migrationsDir, "000001_initial_schema.up.sql"))
	require.NoError(t, err)

	up := string(content)
	for _, table := range []string{
		"identities",
		"identity_status_events",
		"verification_tokens",
		"credentials",
		"mentoring_sessions",
		"feedback_requests",
		"feedback_responses",
	} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}

	// One request per session and role, tokens globally unique
	assert.Contains(t, up, "UNIQUE (session_id, recipient_role)")
	assert.Contains(t, up, "token           TEXT NOT NULL UNIQUE")
}

func TestDownMigrationDropsEveryTable(t *testing.T) {
	up, err := os.ReadFile(filepath.Join(migrationsDir, "000001_initial_schema.up.sql"))
	require.NoError(t, err)
	down, err := os.ReadFile(filepath.Join(migrationsDir, "000001_initial_schema.down.sql"))
	require.NoError(t, err)

	created := strings.Count(string(up), "CREATE TABLE")
	dropped := strings.Count(string(down), "DROP TABLE")
	assert.Equal(t, created, dropped)
}
