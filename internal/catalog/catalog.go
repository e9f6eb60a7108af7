package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/CedricPei/MAS-RAG/pkg/config"
)

// Dialect is the database/sql driver name a target is opened with.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ErrUnknownDatabase is returned when a db id resolves to nothing openable.
var ErrUnknownDatabase = errors.New("unknown database")

// NormalizeDriver maps common aliases onto a registered driver name.
func NormalizeDriver(driver string) Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite
	case "postgres", "postgresql", "pg":
		return DialectPostgres
	case "mysql", "mariadb":
		return DialectMySQL
	default:
		return Dialect(strings.ToLower(driver))
	}
}

// Target is a resolved database location.
type Target struct {
	DBID         string
	Dialect      Dialect
	DSN          string
	GlossaryPath string
}

// Catalog resolves database ids. By default <root>/<id>/<id>.sqlite holds the
// data and <root>/<id>/<id>.json the column glossary.
type Catalog struct {
	root      string
	overrides map[string]config.DatabaseOverride
}

func New(cfg config.DatabasesConfig) *Catalog {
	overrides := make(map[string]config.DatabaseOverride, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		overrides[o.ID] = o
	}
	return &Catalog{root: cfg.Root, overrides: overrides}
}

func (c *Catalog) Root() string { return c.root }

func validateID(dbID string) error {
	if dbID == "" || dbID == "." || dbID == ".." || strings.ContainsAny(dbID, `/\`) {
		return fmt.Errorf("%w: invalid id %q", ErrUnknownDatabase, dbID)
	}
	return nil
}

func (c *Catalog) Resolve(dbID string) (Target, error) {
	if err := validateID(dbID); err != nil {
		return Target{}, err
	}

	dir := filepath.Join(c.root, dbID)
	target := Target{
		DBID:         dbID,
		Dialect:      DialectSQLite,
		GlossaryPath: filepath.Join(dir, dbID+".json"),
	}

	if o, ok := c.overrides[dbID]; ok {
		target.Dialect = NormalizeDriver(o.Driver)
		target.DSN = o.DSN
		if o.Glossary != "" {
			target.GlossaryPath = o.Glossary
		}
		if target.Dialect != DialectSQLite || target.DSN != "" {
			return target, nil
		}
	}

	path := filepath.Join(dir, dbID+".sqlite")
	if _, err := os.Stat(path); err != nil {
		return Target{}, fmt.Errorf("%w %q: %w", ErrUnknownDatabase, dbID, err)
	}
	target.DSN = SQLiteURI(path, "ro")
	return target, nil
}

// SQLiteURI builds a file: URI for path with the given open mode (ro, rw,
// rwc). The path is percent-encoded so '?', '#' and '%' stay part of it.
func SQLiteURI(path, mode string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=" + mode
}

// Open returns a fresh handle on dbID. The caller owns it and must close it.
func (c *Catalog) Open(ctx context.Context, dbID string) (*sql.DB, Dialect, error) {
	target, err := c.Resolve(dbID)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(target.Dialect), target.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database %s: %w", dbID, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to database %s: %w", dbID, err)
	}

	return db, target.Dialect, nil
}

func (c *Catalog) GlossaryPath(dbID string) (string, error) {
	if err := validateID(dbID); err != nil {
		return "", err
	}
	if o, ok := c.overrides[dbID]; ok && o.Glossary != "" {
		return o.Glossary, nil
	}
	return filepath.Join(c.root, dbID, dbID+".json"), nil
}

// List returns every id under the root that follows the sqlite convention,
// plus configured overrides, sorted.
func (c *Catalog) List() ([]string, error) {
	seen := make(map[string]struct{})
	for id := range c.overrides {
		seen[id] = struct{}{}
	}

	entries, err := os.ReadDir(c.root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if _, err := os.Stat(filepath.Join(c.root, id, id+".sqlite")); err == nil {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
