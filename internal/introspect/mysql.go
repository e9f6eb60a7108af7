package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CedricPei/MAS-RAG/internal/catalog"
)

// myExtractor reads the tables of the connection's current database.
type myExtractor struct{}

func (myExtractor) Extract(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema = DATABASE()
		ORDER BY table_name`)
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
	rows.Close()

	for i := range tables {
		t := &tables[i]
		cr, err := db.QueryContext(ctx, `
			SELECT column_name, column_type
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`, t.Name)
		if err != nil {
			return nil, fmt.Errorf("query columns for %s: %w", t.Name, err)
		}
		if t.Columns, err = scanColumns(cr); err != nil {
			return nil, fmt.Errorf("scan columns for %s: %w", t.Name, err)
		}
	}
	return tables, nil
}

func init() {
	Register(catalog.DialectMySQL, myExtractor{})
}
