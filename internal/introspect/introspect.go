package introspect

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/catalog"
)

// Extractor reads the user tables of an open database.
type Extractor interface {
	Extract(ctx context.Context, db *sql.DB) ([]Table, error)
}

var extractors = map[catalog.Dialect]Extractor{}

// Register makes an Extractor available for a dialect.
func Register(d catalog.Dialect, e Extractor) {
	extractors[d] = e
}

func registered() []string {
	keys := make([]string, 0, len(extractors))
	for k := range extractors {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// Source opens target databases and locates their glossaries.
type Source interface {
	Open(ctx context.Context, dbID string) (*sql.DB, catalog.Dialect, error)
	GlossaryPath(dbID string) (string, error)
}

type Introspector struct {
	source Source
	logger *zap.Logger
}

func New(source Source, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspector{source: source, logger: logger}
}

// Describe lists the user tables of dbID ordered by name, with columns in
// catalog order.
func (i *Introspector) Describe(ctx context.Context, dbID string) (Schema, error) {
	db, dialect, err := i.source.Open(ctx, dbID)
	if err != nil {
		return Schema{}, &SchemaError{DBID: dbID, Reason: "cannot open database", Err: err}
	}
	defer db.Close()

	extractor, ok := extractors[dialect]
	if !ok {
		return Schema{}, &SchemaError{
			DBID:   dbID,
			Reason: fmt.Sprintf("dialect not registered: %q (available: %v)", dialect, registered()),
		}
	}

	tables, err := extractor.Extract(ctx, db)
	if err != nil {
		return Schema{}, &SchemaError{DBID: dbID, Reason: "cannot read catalog", Err: err}
	}
	if len(tables) == 0 {
		return Schema{}, &SchemaError{DBID: dbID, Reason: "database has no user tables"}
	}

	sort.SliceStable(tables, func(a, b int) bool { return tables[a].Name < tables[b].Name })

	i.logger.Debug("Schema introspected",
		zap.String("db_id", dbID),
		zap.String("dialect", string(dialect)),
		zap.Int("tables", len(tables)),
	)

	return Schema{DBID: dbID, Tables: tables}, nil
}

// LoadGlossary returns the glossary of dbID re-indented with two spaces.
// Key order and non-ASCII text are kept as authored.
func (i *Introspector) LoadGlossary(dbID string) (string, error) {
	path, err := i.source.GlossaryPath(dbID)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", &MissingGlossaryError{DBID: dbID, Path: path}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read glossary for %s: %w", dbID, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return "", &SchemaError{DBID: dbID, Reason: fmt.Sprintf("glossary %s is not a JSON object", path)}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return "", &SchemaError{DBID: dbID, Reason: "cannot indent glossary", Err: err}
	}
	return strings.TrimSpace(buf.String()), nil
}
