package introspect

import (
	"fmt"
	"strings"
)

const defaultColumnType = "TEXT"

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema is the ordered table listing of one database.
type Schema struct {
	DBID   string  `json:"db_id"`
	Tables []Table `json:"tables"`
}

// Render produces the compact text form embedded in generation prompts:
//
//	TABLE schools
//	  - CDSCode TEXT
//
//	TABLE satscores
//	  - cds TEXT
func (s Schema) Render() string {
	var b strings.Builder
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "TABLE %s\n", t.Name)
		for _, c := range t.Columns {
			typ := c.Type
			if strings.TrimSpace(typ) == "" {
				typ = defaultColumnType
			}
			fmt.Fprintf(&b, "  - %s %s\n", c.Name, typ)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// SchemaError marks a database that cannot be used for generation: it could
// not be opened, its catalog could not be read, or it has no user tables.
type SchemaError struct {
	DBID   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error for %s: %s: %v", e.DBID, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema error for %s: %s", e.DBID, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// MissingGlossaryError is returned when a database has no column glossary.
type MissingGlossaryError struct {
	DBID string
	Path string
}

func (e *MissingGlossaryError) Error() string {
	return fmt.Sprintf("glossary for %s not found at %s", e.DBID, e.Path)
}
