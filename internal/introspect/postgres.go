package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CedricPei/MAS-RAG/internal/catalog"
)

// pgExtractor reads information_schema. Tables outside public are qualified
// with their schema.
type pgExtractor struct{}

func (pgExtractor) Extract(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	type ref struct{ schema, name string }
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.schema, &r.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		refs = append(refs, r)
	}
	rows.Close()

	tables := make([]Table, 0, len(refs))
	for _, r := range refs {
		t := Table{Name: r.name}
		if r.schema != "public" {
			t.Name = r.schema + "." + r.name
		}

		cr, err := db.QueryContext(ctx, `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position`, r.schema, r.name)
		if err != nil {
			return nil, fmt.Errorf("query columns for %s: %w", t.Name, err)
		}
		if t.Columns, err = scanColumns(cr); err != nil {
			return nil, fmt.Errorf("scan columns for %s: %w", t.Name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func scanColumns(rows *sql.Rows) ([]Column, error) {
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var typ sql.NullString
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = typ.String
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func init() {
	Register(catalog.DialectPostgres, pgExtractor{})
}
