// Package catalogtest builds throwaway SQLite databases laid out the way the
// catalog expects.
package catalogtest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/CedricPei/MAS-RAG/internal/catalog"
)

// CaliforniaSchools creates the two-table fixture used across tests.
var CaliforniaSchools = []string{
	`CREATE TABLE schools (CDSCode TEXT PRIMARY KEY, District TEXT, County)`,
	`CREATE TABLE satscores (cds TEXT, AvgScrRead INTEGER)`,
	`INSERT INTO schools VALUES ('001', 'Example Unified', 'Alameda'), ('002', 'Other Elementary', 'Fresno')`,
	`INSERT INTO satscores VALUES ('001', 640), ('002', 512)`,
}

// NewSQLite writes <root>/<dbID>/<dbID>.sqlite and runs stmts against it.
func NewSQLite(t testing.TB, root, dbID string, stmts ...string) string {
	t.Helper()

	dir := filepath.Join(root, dbID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, dbID+".sqlite")

	db, err := sql.Open("sqlite3", catalog.SQLiteURI(path, "rwc"))
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

// WriteGlossary writes <root>/<dbID>/<dbID>.json.
func WriteGlossary(t testing.TB, root, dbID, content string) string {
	t.Helper()

	dir := filepath.Join(root, dbID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, dbID+".json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
