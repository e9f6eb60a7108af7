package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/CedricPei/MAS-RAG/internal/catalog"
)

type sqliteExtractor struct{}

func (sqliteExtractor) Extract(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	rows.Close()

	for i := range tables {
		t := &tables[i]
		query := fmt.Sprintf(`PRAGMA table_info("%s")`, strings.ReplaceAll(t.Name, `"`, `""`))
		cr, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("query columns for %s: %w", t.Name, err)
		}
		for cr.Next() {
			var cid, notnull, pk int
			var name, ctype string
			var dflt sql.NullString
			if err := cr.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				cr.Close()
				return nil, fmt.Errorf("scan column for %s: %w", t.Name, err)
			}
			t.Columns = append(t.Columns, Column{Name: name, Type: ctype})
		}
		err = cr.Err()
		cr.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate columns for %s: %w", t.Name, err)
		}
	}

	return tables, nil
}

func init() {
	Register(catalog.DialectSQLite, sqliteExtractor{})
}
