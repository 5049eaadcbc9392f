package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Entry captures an immutable record of an administrative mutation.
type Entry struct {
	ID        int64
	TableName string
	RowID     int64
	Action    string
	ChangedBy string
	ChangedAt time.Time
	Diff      []byte
}

// Writer appends audit entries inside the caller's transaction so a rolled
// back mutation never leaves a trace.
type Writer interface {
	Append(ctx context.Context, tx pgx.Tx, table string, rowID int64, action, changedBy string, diff map[string]any) error
}

// PGWriter implements Writer against the audit table.
type PGWriter struct{}

func NewWriter() *PGWriter {
	return &PGWriter{}
}

func (w *PGWriter) Append(ctx context.Context, tx pgx.Tx, table string, rowID int64, action, changedBy string, diff map[string]any) error {
	var diffJSON any
	if len(diff) > 0 {
		diffJSON = toJSON(diff)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO audit (table_name, row_id, action, changed_by, diff)
        VALUES ($1, $2, $3, $4, $5::jsonb)
    `, table, rowID, action, changedBy, diffJSON); err != nil {
		return fmt.Errorf("audit: append %s/%s: %w", table, action, err)
	}
	return nil
}

func toJSON(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return string(b)
}
