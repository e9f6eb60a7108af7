package bridge

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/catalog"
	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
)

// Opener hands out a database handle per call. The executor closes it.
type Opener interface {
	Open(ctx context.Context, dbID string) (*sql.DB, catalog.Dialect, error)
}

// Executor runs generated bridge queries and keeps only records whose query
// returns at least one row.
type Executor struct {
	opener Opener
	logger *zap.Logger
}

func NewExecutor(opener Opener, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{opener: opener, logger: logger}
}

// Execute runs record.SQLAnswer verbatim against record.DBID. The boolean is
// false when the record must be dropped: missing fields, any query error, or
// an empty result. No reason is surfaced past this point.
func (e *Executor) Execute(ctx context.Context, record dataset.QuestionRecord) (dataset.BridgedRecord, bool) {
	if !record.Executable() {
		e.skip(record)
		return dataset.BridgedRecord{}, false
	}

	instance, err := e.Query(ctx, record.DBID, *record.SQLAnswer)
	if err != nil || len(instance) == 0 {
		e.skip(record)
		return dataset.BridgedRecord{}, false
	}

	metrics.BridgeRows.Observe(float64(len(instance)))
	return dataset.BridgedRecord{QuestionRecord: record, Instance: instance}, true
}

// Query executes query on a fresh connection and materializes every row with
// column order preserved. The connection is closed before returning.
func (e *Executor) Query(ctx context.Context, dbID, query string) (dataset.BridgeInstance, error) {
	db, _, err := e.opener.Open(ctx, dbID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute bridge query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var instance dataset.BridgeInstance
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		instance = append(instance, dataset.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate result rows: %w", err)
	}

	return instance, nil
}

func (e *Executor) skip(record dataset.QuestionRecord) {
	e.logger.Debug("Bridge record skipped",
		zap.String("db_id", record.DBID),
		zap.Int("record_id", record.ID),
	)
}
